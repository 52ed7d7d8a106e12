package transform

import "github.com/go-gl/mathgl/mgl64"

// Memo is a write-through cache in front of a host entity's pose.
// Hosts apply pose writes lazily and with internal snapping, so writing
// a matrix and immediately reading it back is not guaranteed to
// reproduce the written value. Within one memo lifetime, Matrix always
// returns the last value given to SetMatrix, never a host read-back.
//
// A memo must be scoped to a single update pass: caching it across
// passes would hide pose changes made by the host in between.
type Memo struct {
	entity Entity
	cached *mgl64.Mat4
}

// NewMemo wraps entity for one update pass.
func NewMemo(entity Entity) *Memo {
	return &Memo{entity: entity}
}

// Matrix returns the cached pose if SetMatrix has been called during
// this memo's lifetime, otherwise the live entity pose.
func (m *Memo) Matrix() mgl64.Mat4 {
	if m.cached != nil {
		return *m.cached
	}
	return m.entity.Matrix()
}

// SetMatrix records t as the authoritative pose and forwards it to the
// entity, fire-and-forget.
func (m *Memo) SetMatrix(t mgl64.Mat4) {
	m.cached = &t
	m.entity.SetMatrix(t)
}
