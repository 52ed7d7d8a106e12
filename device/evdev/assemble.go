// Package evdev reads 3Dconnexion devices through the kernel input
// layer, with no spnav daemon involved. Relative and absolute axis
// events accumulate until a SYN_REPORT closes the frame; each frame
// becomes one motion event, and key events below the frame level map to
// button events. The source satisfies the same poll contract as the
// daemon socket client, so the listener drives both identically.
package evdev

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	gevdev "github.com/gvalkov/golang-evdev"

	"github.com/gimbalkit/gimbal"
)

// DefaultAxisScale is the full deflection magnitude most devices report
// through the input layer.
const DefaultAxisScale = 350

// eventScale maps the normalized deflection onto the daemon's +-500
// value range.
const eventScale = 500

// Assembler folds raw input events into frames. Axis values persist
// across frames, mirroring how the devices report: a frame only carries
// the axes that changed.
type Assembler struct {
	axisScale float64
	axes      [6]int32
	dirty     bool
	lastFrame time.Time
}

// NewAssembler returns an assembler normalizing by the given full
// deflection; 0 means DefaultAxisScale.
func NewAssembler(axisScale float64) *Assembler {
	if axisScale == 0 {
		axisScale = DefaultAxisScale
	}
	return &Assembler{axisScale: axisScale}
}

// Ingest consumes one raw event and returns the pipeline events it
// completed: a button event immediately, a motion event when a
// SYN_REPORT closes a frame with axis changes, nothing otherwise.
func (a *Assembler) Ingest(ev gevdev.InputEvent) []gimbal.Event {
	switch ev.Type {
	case gevdev.EV_REL:
		if ev.Code <= gevdev.REL_RZ {
			a.axes[ev.Code] = ev.Value
			a.dirty = true
		}
	case gevdev.EV_ABS:
		if ev.Code <= gevdev.ABS_RZ {
			a.axes[ev.Code] = ev.Value
			a.dirty = true
		}
	case gevdev.EV_KEY:
		// Value 2 is key repeat, which buttons do not have.
		if ev.Code >= gevdev.BTN_0 && ev.Value <= 1 {
			return []gimbal.Event{gimbal.ButtonEvent{
				Button:  uint32(ev.Code - gevdev.BTN_0),
				Pressed: ev.Value == 1,
			}}
		}
	case gevdev.EV_SYN:
		if ev.Code == gevdev.SYN_REPORT && a.dirty {
			a.dirty = false
			return []gimbal.Event{a.frame(int64(ev.Time.Sec), int64(ev.Time.Usec))}
		}
	}
	return nil
}

func (a *Assembler) frame(sec, usec int64) gimbal.MotionEvent {
	at := time.Unix(sec, usec*1000)
	var period uint32
	if !a.lastFrame.IsZero() {
		period = uint32(at.Sub(a.lastFrame) / time.Millisecond)
	}
	a.lastFrame = at
	k := eventScale / a.axisScale
	return gimbal.MotionEvent{
		Translation: mgl64.Vec3{
			float64(a.axes[0]) * k,
			float64(a.axes[1]) * k,
			float64(a.axes[2]) * k,
		},
		Rotation: mgl64.Vec3{
			float64(a.axes[3]) * k,
			float64(a.axes[4]) * k,
			float64(a.axes[5]) * k,
		},
		Period: period,
	}
}
