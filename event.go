// Package gimbal defines the event model shared by every 6-DoF input
// source and the consumers downstream of them: a motion sample carrying
// translation force and rotation torque, and a discrete button change.
//
// Sources come in two shapes. A PollSource exposes a file descriptor the
// listener can multiplex over and a non-blocking decode call; the spacenavd
// client and the evdev reader work this way. A PushSource delivers events
// from its own reader goroutine through a subscribed callback; the raw HID
// reader works this way. Both feed the same listener queues.
package gimbal

import "github.com/go-gl/mathgl/mgl64"

// Event is a decoded device event, either a MotionEvent or a ButtonEvent.
type Event interface {
	// kind discriminates the two concrete event types without exposing
	// a tag value that could drift from the wire protocol's.
	kind() string
}

// MotionEvent is one sample from the device: translation force, rotation
// torque and the period field the daemon attaches (milliseconds since the
// previous motion sample; its exact meaning is daemon-defined).
type MotionEvent struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Vec3
	Period      uint32
}

func (MotionEvent) kind() string { return "motion" }

// AtRest reports whether all six axes are exactly zero. The device emits
// one final zero sample when released; gesture teardown waits for it so a
// gesture never ends with residual motion applied.
func (e MotionEvent) AtRest() bool {
	return e.Translation == mgl64.Vec3{} && e.Rotation == mgl64.Vec3{}
}

// ButtonEvent is a press or release of a numbered device button.
type ButtonEvent struct {
	Button  uint32
	Pressed bool
}

func (ButtonEvent) kind() string { return "button" }

// Source is an open connection to a 6-DoF device. The listener takes
// ownership of the source handed to it and closes it when killed.
type Source interface {
	Close() error
}

// PollSource is a source driven by readiness polling. PollEvent must be
// non-blocking: it returns (nil, nil) when no complete event is pending,
// io.EOF when the peer closed, and a decode error on protocol violations.
type PollSource interface {
	Source
	Fd() int
	PollEvent() (Event, error)
}

// PushSource is a source that delivers events from its own goroutine.
// Subscribe registers a delivery callback; events arriving before the
// first callback is set are dropped. Close stops delivery before
// returning.
type PushSource interface {
	Source
	Subscribe(fn func(Event))
}
