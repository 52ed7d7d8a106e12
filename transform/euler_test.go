package transform_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/gimbalkit/gimbal/transform"
)

func assertMat3Near(t *testing.T, want, got mgl64.Mat3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "element %d", i)
	}
}

func assertMat4Near(t *testing.T, want, got mgl64.Mat4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "element %d", i)
	}
}

func TestEulerRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		euler mgl64.Vec3
	}{
		{"zero", mgl64.Vec3{0, 0, 0}},
		{"x only", mgl64.Vec3{0.3, 0, 0}},
		{"y only", mgl64.Vec3{0, -0.4, 0}},
		{"z only", mgl64.Vec3{0, 0, 1.1}},
		{"mixed", mgl64.Vec3{0.3, -0.4, 0.5}},
		{"large", mgl64.Vec3{1.2, 0.9, -1.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transform.Mat3ToEuler(transform.EulerToMat3(tt.euler))
			for i := 0; i < 3; i++ {
				assert.InDelta(t, tt.euler[i], got[i], 1e-9, "axis %d", i)
			}
		})
	}
}

// The decomposition has two valid answers for any rotation; whichever
// is picked must recompose to the same matrix. This holds even at
// gimbal lock where the angle round trip does not.
func TestEulerMatrixRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		euler mgl64.Vec3
	}{
		{"mixed", mgl64.Vec3{0.3, -0.4, 0.5}},
		{"near flip", mgl64.Vec3{3.0, 0.1, -3.0}},
		{"gimbal lock up", mgl64.Vec3{0.7, math.Pi / 2, 0.2}},
		{"gimbal lock down", mgl64.Vec3{-0.2, -math.Pi / 2, 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := transform.EulerToMat3(tt.euler)
			back := transform.EulerToMat3(transform.Mat3ToEuler(m))
			assertMat3Near(t, m, back)
		})
	}
}

func TestEulerToMat3AxisDirections(t *testing.T) {
	// Column-major: rotating +90 degrees about Z must send X to Y.
	m := transform.EulerToMat3(mgl64.Vec3{0, 0, math.Pi / 2})
	v := m.Mul3x1(mgl64.Vec3{1, 0, 0})
	assert.InDelta(t, 0, v[0], 1e-9)
	assert.InDelta(t, 1, v[1], 1e-9)
	assert.InDelta(t, 0, v[2], 1e-9)
}

func TestTranslationAccessors(t *testing.T) {
	m := mgl64.Translate3D(1, 2, 3)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, transform.Translation(m))

	moved := transform.WithTranslation(m, mgl64.Vec3{-4, 5, -6})
	assert.Equal(t, mgl64.Vec3{-4, 5, -6}, transform.Translation(moved))
	// Original is untouched.
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, transform.Translation(m))
}

func TestNormalizedRotationRemovesScale(t *testing.T) {
	rot := transform.EulerToMat4(mgl64.Vec3{0.3, -0.4, 0.5})
	scaled := rot.Mul4(mgl64.Scale3D(2, 2, 2))
	got := transform.NormalizedRotation(scaled)
	assertMat3Near(t, rot.Mat3(), got)
}

func TestCompose(t *testing.T) {
	loc := mgl64.Vec3{1, -2, 3}
	eul := mgl64.Vec3{0.2, 0.3, -0.4}
	scale := mgl64.Vec3{2, 3, 4}

	m := transform.Compose(loc, eul, scale)

	assert.Equal(t, loc, transform.Translation(m))
	for i := 0; i < 3; i++ {
		col := mgl64.Vec3{m[i*4], m[i*4+1], m[i*4+2]}
		assert.InDelta(t, scale[i], col.Len(), 1e-9, "column %d scale", i)
	}
	assertMat3Near(t, transform.EulerToMat3(eul), transform.NormalizedRotation(m))
}
