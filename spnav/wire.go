// Package spnav implements the client side of the spacenavd daemon
// protocol: a stream of fixed 32-byte packets over an AF_UNIX socket.
// Each packet is eight 32-bit integers; the first is the event tag.
// The daemon and its clients always share a machine, so the wire uses
// host byte order; little-endian on every supported target.
package spnav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gimbalkit/gimbal"
)

// Wire constants (host byte order / little-endian)
const (
	// PacketSize is the fixed length of every daemon event packet:
	// eight 32-bit words.
	PacketSize = 32

	// Event tags in word 0.
	TagMotion        = 0 // words 1..6: x y z rx ry rz, word 7: period
	TagButtonPress   = 1 // word 1: button number
	TagButtonRelease = 2 // word 1: button number
)

// ErrEventType marks a packet whose tag is none of the known values.
// The protocol contract was violated; the connection is not usable after.
var ErrEventType = errors.New("spnav: unknown event type")

// MotionPacket is the wire form of one motion sample.
type MotionPacket struct {
	X, Y, Z    int32
	RX, RY, RZ int32
	Period     uint32
}

func (p *MotionPacket) Write(w io.Writer) error {
	var buf [PacketSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], TagMotion)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.X))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Y))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(p.Z))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(p.RX))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(p.RY))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(p.RZ))
	binary.LittleEndian.PutUint32(buf[28:32], p.Period)
	_, err := w.Write(buf[:])
	return err
}

// ButtonPacket is the wire form of one button press or release.
type ButtonPacket struct {
	Pressed bool
	Button  uint32
}

func (p *ButtonPacket) Write(w io.Writer) error {
	var buf [PacketSize]byte
	tag := uint32(TagButtonRelease)
	if p.Pressed {
		tag = TagButtonPress
	}
	binary.LittleEndian.PutUint32(buf[0:4], tag)
	binary.LittleEndian.PutUint32(buf[4:8], p.Button)
	_, err := w.Write(buf[:])
	return err
}

// DecodeEvent decodes one complete packet into a typed event.
// buf must hold exactly PacketSize bytes.
func DecodeEvent(buf []byte) (gimbal.Event, error) {
	if len(buf) != PacketSize {
		return nil, fmt.Errorf("spnav: packet length %d, want %d", len(buf), PacketSize)
	}
	word := func(i int) uint32 { return binary.LittleEndian.Uint32(buf[i*4 : i*4+4]) }

	switch tag := word(0); tag {
	case TagMotion:
		return gimbal.MotionEvent{
			Translation: mgl64.Vec3{
				float64(int32(word(1))),
				float64(int32(word(2))),
				float64(int32(word(3))),
			},
			Rotation: mgl64.Vec3{
				float64(int32(word(4))),
				float64(int32(word(5))),
				float64(int32(word(6))),
			},
			Period: word(7),
		}, nil
	case TagButtonPress, TagButtonRelease:
		return gimbal.ButtonEvent{
			Button:  word(1),
			Pressed: tag == TagButtonPress,
		}, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrEventType, tag)
	}
}
