package transform

import (
	"errors"
	"io"
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/prefs"
)

// Bend multipliers: while bent, deltas are applied relative to a frozen
// anchor instead of accumulating, so they get room to be much larger.
const (
	bentRotateMod    = 16
	bentTranslateMod = 8
)

// ErrTargetCount reports a gesture-start attempt without exactly one
// selected entity. Hosts surface it as a user-facing message; the
// gesture does not start.
var ErrTargetCount = errors.New("transform: exactly one target entity must be selected")

// SelectTarget picks the entity a new session will drive. A gesture
// works on exactly one entity; anything else is ErrTargetCount.
func SelectTarget(targets []Entity) (Entity, error) {
	if len(targets) != 1 {
		return nil, ErrTargetCount
	}
	return targets[0], nil
}

// Entity is the host-side accessor for the object being transformed.
// SetMatrix is fire-and-forget: the host may defer, constrain or snap
// the write, which is why all reads go through a Memo.
type Entity interface {
	Matrix() mgl64.Mat4
	SetMatrix(mgl64.Mat4)
	LockedLocation() [3]bool
	LockedRotation() [3]bool
	Scale() mgl64.Vec3
}

// ViewProvider reports the active camera/view orientation. ok is false
// when no view exists; alignment then falls back to identity.
type ViewProvider interface {
	ViewMatrix() (m mgl64.Mat4, ok bool)
}

// MotionQueue is the slice of the device listener a session drives: the
// non-blocking drain plus the motion-queue lifecycle the gesture owns.
type MotionQueue interface {
	ActivateMotion()
	DeactivateMotion()
	MotionEvents() []gimbal.MotionEvent
}

// ConfigProvider returns the current preference set. It is called once
// per applied event so live preference edits take effect mid-gesture.
type ConfigProvider func() prefs.Config

// Status is the session state reported by Tick.
type Status int

const (
	// Running means the gesture continues and Tick should be called again.
	Running Status = iota
	// Finished means the gesture ended this tick; session state has been
	// reset and the motion queue deactivated. The host runs its own
	// teardown (undo push, notifications) on seeing this.
	Finished
)

// InputValue distinguishes press and release of a host input signal.
type InputValue int

const (
	Press InputValue = iota
	Release
)

// Input is one host input signal routed into the session.
type Input struct {
	Code  string
	Value InputValue
}

// Bindings maps host input codes to session actions. Terminating codes
// act on press or release; the toggles act on release only.
type Bindings struct {
	// Cancel ends the gesture and restores the initial transform.
	Cancel []string
	// Confirm ends the gesture keeping the result.
	Confirm []string

	FlipLock   string
	ResetLock  string
	ToggleBend string
}

// DefaultBindings mirrors the stock keymap: NDOF Fit flips the lock
// pair, NDOF Menu resets it, Space toggles bend mode.
func DefaultBindings() Bindings {
	return Bindings{
		Cancel:     []string{"ESC", "RIGHTMOUSE"},
		Confirm:    []string{"RET", "LEFTMOUSE"},
		FlipLock:   "NDOF_BUTTON_FIT",
		ResetLock:  "NDOF_BUTTON_MENU",
		ToggleBend: "SPACE",
	}
}

// Policy captures the host-mode gating of the two update categories.
// The zero value is the standard behavior: both categories run unless
// their session lock is set.
type Policy struct {
	// RotateIgnoresLock applies rotation regardless of the session
	// rotation lock.
	RotateIgnoresLock bool
	// SkipTranslate suppresses translation entirely.
	SkipTranslate bool
}

// PosePolicy is the armature/pose-editing preset: bones always rotate
// and never translate through this pipeline.
func PosePolicy() Policy {
	return Policy{RotateIgnoresLock: true, SkipTranslate: true}
}

// Options configures a new session.
type Options struct {
	// View supplies the camera orientation; nil means no view context
	// (identity alignment).
	View ViewProvider
	// Bindings overrides DefaultBindings when non-nil.
	Bindings *Bindings
	Policy   Policy
	// LockTranslate starts the gesture with translation locked, the
	// behavior of invoking via the lock-flip device button.
	LockTranslate bool
	Logger        *slog.Logger
}

// Session is the state machine for one interactive gesture: it drains
// motion events, applies them to the target through a per-tick memo,
// and owns the lock, bend and termination state. A session is used from
// a single goroutine, the host's update loop.
type Session struct {
	queue    MotionQueue
	config   ConfigProvider
	view     ViewProvider
	bindings Bindings
	policy   Policy
	logger   *slog.Logger

	lockedTranslate bool
	lockedRotate    bool
	bendMode        bool
	bendAnchor      *mgl64.Mat4
	initial         *mgl64.Mat4
	finished        bool
	atRest          bool
	shouldUndo      bool
}

// NewSession builds a session over an activated-on-Start motion queue.
// config may be nil, which pins the stock preferences.
func NewSession(queue MotionQueue, config ConfigProvider, opts Options) *Session {
	if config == nil {
		config = func() prefs.Config { return prefs.Default() }
	}
	bindings := DefaultBindings()
	if opts.Bindings != nil {
		bindings = *opts.Bindings
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Session{
		queue:    queue,
		config:   config,
		view:     opts.View,
		bindings: bindings,
		policy:   opts.Policy,
		logger:   logger,
	}
	if opts.LockTranslate {
		s.initLocks()
	}
	return s
}

// Start begins (or restarts) the gesture: the motion queue is activated
// and per-gesture anchors are cleared. Lock state survives restarts.
func (s *Session) Start() {
	s.queue.ActivateMotion()
	s.bendAnchor = nil
	s.initial = nil
	s.logger.Debug("gesture started",
		"locked_translate", s.lockedTranslate, "locked_rotate", s.lockedRotate)
}

// LockedTranslate reports whether translation is currently locked.
func (s *Session) LockedTranslate() bool { return s.lockedTranslate }

// LockedRotate reports whether rotation is currently locked.
func (s *Session) LockedRotate() bool { return s.lockedRotate }

// BendMode reports whether bend mode is active.
func (s *Session) BendMode() bool { return s.bendMode }

// HandleInput routes one host input signal: terminators mark the
// gesture finished (recording whether to undo), the toggles flip lock
// and bend state on release. Non-bound codes are ignored.
func (s *Session) HandleInput(in Input) {
	terminator := slices.Contains(s.bindings.Cancel, in.Code) ||
		slices.Contains(s.bindings.Confirm, in.Code)
	switch {
	case terminator:
		s.shouldUndo = !slices.Contains(s.bindings.Confirm, in.Code)
		s.finished = true
	case in.Code == s.bindings.FlipLock && in.Value == Release:
		s.flipLocks()
	case in.Code == s.bindings.ResetLock && in.Value == Release:
		s.resetLocks()
	case in.Code == s.bindings.ToggleBend && in.Value == Release:
		s.toggleBend()
	}
}

func (s *Session) initLocks() {
	s.lockedTranslate = true
	s.lockedRotate = false
}

func (s *Session) resetLocks() {
	s.lockedTranslate = false
	s.lockedRotate = false
}

// flipLocks swaps the two locks; when that leaves them equal (both set
// or both clear) it falls back to the translation-locked start state,
// so repeated presses cycle rotate-only / translate-only.
func (s *Session) flipLocks() {
	s.lockedRotate, s.lockedTranslate = s.lockedTranslate, s.lockedRotate
	if s.lockedTranslate == s.lockedRotate {
		s.initLocks()
	}
}

// toggleBend flips bend mode. Leaving bend mode drops the anchor: the
// next activation captures a fresh one.
func (s *Session) toggleBend() {
	if s.bendMode {
		s.bendAnchor = nil
	}
	s.bendMode = !s.bendMode
}

// Tick drains the motion queue and applies each event to target in
// arrival order. Call once per host update. The returned status is
// Finished exactly once per gesture, after a terminator arrived and the
// device returned to rest.
func (s *Session) Tick(target Entity) Status {
	memo := NewMemo(target)
	if s.initial == nil {
		m := memo.Matrix()
		s.initial = &m
	}

	if s.finished && s.atRest {
		return s.end(memo)
	}

	for _, ev := range s.queue.MotionEvents() {
		resting := s.checkRest(ev)
		if resting || s.finished {
			if s.finished && resting {
				return s.end(memo)
			}
			// Swallow residual motion after a terminator, and rest
			// samples always.
			continue
		}

		view := s.alignedView()
		ev = ApplyPrefs(ev, s.config())
		s.checkBend(memo)

		if s.policy.RotateIgnoresLock || !s.lockedRotate {
			s.rotate(view, target, ev.Rotation, memo)
		}
		if !s.policy.SkipTranslate && !s.lockedTranslate {
			s.translate(view, target, ev.Translation, memo)
		}
	}
	return Running
}

func (s *Session) checkRest(ev gimbal.MotionEvent) bool {
	s.atRest = ev.AtRest()
	return s.atRest
}

// alignedView computes the per-event view alignment, degrading to
// identity when no view context exists.
func (s *Session) alignedView() mgl64.Mat4 {
	if s.view == nil {
		return mgl64.Ident4()
	}
	m, ok := s.view.ViewMatrix()
	if !ok {
		return mgl64.Ident4()
	}
	return ViewAligned(m, s.config().ViewAxes)
}

// checkBend captures the anchor on the first bent event and resets the
// pose to it on every later one, so bent motion never accumulates.
func (s *Session) checkBend(memo *Memo) {
	if !s.bendMode {
		return
	}
	if s.bendAnchor == nil {
		m := memo.Matrix()
		s.bendAnchor = &m
	} else {
		memo.SetMatrix(*s.bendAnchor)
	}
}

// rotate applies the torque vector: axis reorder (x, y, -z), bend and
// device scaling, rotation expressed in view space and mapped back into
// local space around the entity's own origin.
func (s *Session) rotate(view mgl64.Mat4, target Entity, rot mgl64.Vec3, memo *Memo) {
	rot = mgl64.Vec3{rot[0], rot[1], -rot[2]}
	mod := 1.0
	if s.bendMode {
		mod = bentRotateMod
	}
	world := memo.Matrix()
	rotM := EulerToMat4(rot.Mul(mod / 500))
	worldCentered := WithTranslation(world, mgl64.Vec3{})
	a := invSafe(view).Mul4(rotM.Mul4(view)).Mul4(worldCentered)
	a = WithTranslation(a, Translation(world))
	s.applyLocked(target, a, memo)
}

// translate applies the force vector: axis reorder (x, z, y), bend
// scaling, movement expressed in view space; only the resulting
// translation survives so translation never disturbs orientation.
func (s *Session) translate(view mgl64.Mat4, target Entity, loc mgl64.Vec3, memo *Memo) {
	loc = mgl64.Vec3{loc[0], loc[2], loc[1]}
	mod := 1.0
	if s.bendMode {
		mod = bentTranslateMod
	}
	move := WithTranslation(mgl64.Ident4(), loc.Mul(mod))
	pos := WithTranslation(mgl64.Ident4(), Translation(memo.Matrix()))
	a := invSafe(view).Mul4(move.Mul4(view.Mul4(pos)))
	world := WithTranslation(memo.Matrix(), Translation(a))
	s.applyLocked(target, world, memo)
}

// applyLocked writes the computed pose through the memo, with every
// entity-locked axis keeping its previous value and scale passed
// through untouched.
func (s *Session) applyLocked(target Entity, next mgl64.Mat4, memo *Memo) {
	old := memo.Matrix()
	loc, oldLoc := Translation(next), Translation(old)
	eul := Mat3ToEuler(NormalizedRotation(next))
	oldEul := Mat3ToEuler(NormalizedRotation(old))
	lockLoc, lockRot := target.LockedLocation(), target.LockedRotation()
	for i := 0; i < 3; i++ {
		if lockLoc[i] {
			loc[i] = oldLoc[i]
		}
		if lockRot[i] {
			eul[i] = oldEul[i]
		}
	}
	memo.SetMatrix(Compose(loc, eul, target.Scale()))
}

// end closes the gesture: optionally restores the initial pose, resets
// all per-gesture state and releases the motion queue.
func (s *Session) end(memo *Memo) Status {
	if s.shouldUndo && s.initial != nil {
		memo.SetMatrix(*s.initial)
	}
	s.finished = false
	s.atRest = false
	s.initial = nil
	s.shouldUndo = false
	s.bendAnchor = nil
	s.queue.DeactivateMotion()
	s.logger.Debug("gesture ended")
	return Finished
}
