package hid

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gimbalkit/gimbal"
)

// eventScale maps the normalized [-1, 1] axis range onto the value
// range the daemon socket delivers, so both transports feed the
// preference layer identically.
const eventScale = 500

// Decoder turns raw reports into events. Axis state persists across
// reports because split-layout devices deliver translation and rotation
// in separate reports; every axis-bearing report emits a snapshot of
// all six axes.
type Decoder struct {
	spec       DeviceSpec
	axes       [6]float64
	buttons    uint32
	lastMotion time.Time
	now        func() time.Time
}

// NewDecoder returns a decoder for one device's report layout.
func NewDecoder(spec DeviceSpec) *Decoder {
	return &Decoder{spec: spec, now: time.Now}
}

func toInt16(lo, hi byte) int16 {
	return int16(uint16(lo) | uint16(hi)<<8)
}

// Report decodes one raw report and returns the events it produced, in
// order. Reports on unknown channels produce nothing.
func (d *Decoder) Report(data []byte) []gimbal.Event {
	if len(data) == 0 {
		return nil
	}
	channel := data[0]
	var events []gimbal.Event

	axisSeen := false
	for i, axis := range d.spec.Axes.list() {
		if axis.Channel != channel || axis.Hi >= len(data) {
			continue
		}
		raw := toInt16(data[axis.Lo], data[axis.Hi])
		d.axes[i] = axis.Scale * float64(raw) / d.spec.AxisScale
		axisSeen = true
	}
	if axisSeen {
		events = append(events, d.motionSnapshot())
	}

	buttonSeen := false
	next := d.buttons
	for i, btn := range d.spec.Buttons {
		if btn.Channel != channel || btn.Byte >= len(data) {
			continue
		}
		buttonSeen = true
		if data[btn.Byte]&(1<<btn.Bit) != 0 {
			next |= 1 << uint(i)
		} else {
			next &^= 1 << uint(i)
		}
	}
	if buttonSeen && next != d.buttons {
		for i := range d.spec.Buttons {
			bit := uint32(1) << uint(i)
			if d.buttons&bit == next&bit {
				continue
			}
			events = append(events, gimbal.ButtonEvent{
				Button:  uint32(i),
				Pressed: next&bit != 0,
			})
		}
		d.buttons = next
	}
	return events
}

func (d *Decoder) motionSnapshot() gimbal.MotionEvent {
	now := d.now()
	var period uint32
	if !d.lastMotion.IsZero() {
		period = uint32(now.Sub(d.lastMotion) / time.Millisecond)
	}
	d.lastMotion = now
	return gimbal.MotionEvent{
		Translation: mgl64.Vec3{
			d.axes[0] * eventScale,
			d.axes[1] * eventScale,
			d.axes[2] * eventScale,
		},
		Rotation: mgl64.Vec3{
			d.axes[3] * eventScale,
			d.axes[4] * eventScale,
			d.axes[5] * eventScale,
		},
		Period: period,
	}
}
