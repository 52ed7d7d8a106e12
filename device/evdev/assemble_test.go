package evdev_test

import (
	"syscall"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	gevdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/device/evdev"
)

func raw(typ, code uint16, value int32) gevdev.InputEvent {
	return gevdev.InputEvent{Type: typ, Code: code, Value: value}
}

func rawAt(typ, code uint16, value int32, sec, usec int64) gevdev.InputEvent {
	ev := raw(typ, code, value)
	ev.Time = syscall.Timeval{Sec: sec, Usec: usec}
	return ev
}

func assertVec3Near(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want[i], got[i], 1e-9, "axis %d", i)
	}
}

func onlyMotion(t *testing.T, evs []gimbal.Event) gimbal.MotionEvent {
	t.Helper()
	require.Len(t, evs, 1)
	m, ok := evs[0].(gimbal.MotionEvent)
	require.True(t, ok, "expected a motion event, got %T", evs[0])
	return m
}

func TestAssemblerFrames(t *testing.T) {
	a := evdev.NewAssembler(0)

	assert.Empty(t, a.Ingest(raw(gevdev.EV_REL, gevdev.REL_X, 350)))
	assert.Empty(t, a.Ingest(raw(gevdev.EV_REL, gevdev.REL_Y, 175)))
	assert.Empty(t, a.Ingest(raw(gevdev.EV_REL, gevdev.REL_RZ, -350)))

	m := onlyMotion(t, a.Ingest(raw(gevdev.EV_SYN, gevdev.SYN_REPORT, 0)))
	assertVec3Near(t, mgl64.Vec3{500, 250, 0}, m.Translation)
	assertVec3Near(t, mgl64.Vec3{0, 0, -500}, m.Rotation)
}

func TestAssemblerAxesPersistAcrossFrames(t *testing.T) {
	a := evdev.NewAssembler(0)

	a.Ingest(raw(gevdev.EV_REL, gevdev.REL_X, 350))
	a.Ingest(raw(gevdev.EV_REL, gevdev.REL_Y, 175))
	a.Ingest(raw(gevdev.EV_SYN, gevdev.SYN_REPORT, 0))

	// The second frame only updates x; y holds.
	a.Ingest(raw(gevdev.EV_REL, gevdev.REL_X, 0))
	m := onlyMotion(t, a.Ingest(raw(gevdev.EV_SYN, gevdev.SYN_REPORT, 0)))
	assertVec3Near(t, mgl64.Vec3{0, 250, 0}, m.Translation)
}

func TestAssemblerQuietSyncEmitsNothing(t *testing.T) {
	a := evdev.NewAssembler(0)

	a.Ingest(raw(gevdev.EV_REL, gevdev.REL_X, 350))
	a.Ingest(raw(gevdev.EV_SYN, gevdev.SYN_REPORT, 0))

	// No axis traffic since the last frame.
	assert.Empty(t, a.Ingest(raw(gevdev.EV_SYN, gevdev.SYN_REPORT, 0)))
}

func TestAssemblerAbsoluteAxes(t *testing.T) {
	a := evdev.NewAssembler(0)

	a.Ingest(raw(gevdev.EV_ABS, gevdev.ABS_RX, 175))
	m := onlyMotion(t, a.Ingest(raw(gevdev.EV_SYN, gevdev.SYN_REPORT, 0)))
	assertVec3Near(t, mgl64.Vec3{250, 0, 0}, m.Rotation)
}

func TestAssemblerButtons(t *testing.T) {
	a := evdev.NewAssembler(0)

	evs := a.Ingest(raw(gevdev.EV_KEY, gevdev.BTN_0+1, 1))
	assert.Equal(t, []gimbal.Event{gimbal.ButtonEvent{Button: 1, Pressed: true}}, evs)

	evs = a.Ingest(raw(gevdev.EV_KEY, gevdev.BTN_0+1, 0))
	assert.Equal(t, []gimbal.Event{gimbal.ButtonEvent{Button: 1, Pressed: false}}, evs)

	// Key repeat and ordinary keyboard keys pass through silently.
	assert.Empty(t, a.Ingest(raw(gevdev.EV_KEY, gevdev.BTN_0, 2)))
	assert.Empty(t, a.Ingest(raw(gevdev.EV_KEY, gevdev.KEY_A, 1)))
}

func TestAssemblerPeriod(t *testing.T) {
	a := evdev.NewAssembler(0)

	a.Ingest(rawAt(gevdev.EV_REL, gevdev.REL_X, 10, 100, 0))
	m := onlyMotion(t, a.Ingest(rawAt(gevdev.EV_SYN, gevdev.SYN_REPORT, 0, 100, 0)))
	assert.Zero(t, m.Period)

	a.Ingest(rawAt(gevdev.EV_REL, gevdev.REL_X, 20, 100, 16000))
	m = onlyMotion(t, a.Ingest(rawAt(gevdev.EV_SYN, gevdev.SYN_REPORT, 0, 100, 16000)))
	assert.Equal(t, uint32(16), m.Period)
}

func TestAssemblerCustomScale(t *testing.T) {
	a := evdev.NewAssembler(500)

	a.Ingest(raw(gevdev.EV_REL, gevdev.REL_X, 500))
	m := onlyMotion(t, a.Ingest(raw(gevdev.EV_SYN, gevdev.SYN_REPORT, 0)))
	assertVec3Near(t, mgl64.Vec3{500, 0, 0}, m.Translation)
}
