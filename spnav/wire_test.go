package spnav_test

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/spnav"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		write    func(*bytes.Buffer) error
		expected gimbal.Event
	}{
		{
			name: "motion packet",
			write: func(b *bytes.Buffer) error {
				p := spnav.MotionPacket{X: 12, Y: -7, Z: 3, RX: -350, RY: 0, RZ: 99, Period: 16}
				return p.Write(b)
			},
			expected: gimbal.MotionEvent{
				Translation: mgl64.Vec3{12, -7, 3},
				Rotation:    mgl64.Vec3{-350, 0, 99},
				Period:      16,
			},
		},
		{
			name: "zero motion packet",
			write: func(b *bytes.Buffer) error {
				p := spnav.MotionPacket{}
				return p.Write(b)
			},
			expected: gimbal.MotionEvent{},
		},
		{
			name: "button press",
			write: func(b *bytes.Buffer) error {
				p := spnav.ButtonPacket{Pressed: true, Button: 1}
				return p.Write(b)
			},
			expected: gimbal.ButtonEvent{Button: 1, Pressed: true},
		},
		{
			name: "button release",
			write: func(b *bytes.Buffer) error {
				p := spnav.ButtonPacket{Pressed: false, Button: 0}
				return p.Write(b)
			},
			expected: gimbal.ButtonEvent{Button: 0, Pressed: false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.NoError(t, tc.write(&buf))
			assert.Equal(t, spnav.PacketSize, buf.Len())

			ev, err := spnav.DecodeEvent(buf.Bytes())
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, ev)
		})
	}
}

func TestDecodeEventRejectsUnknownTag(t *testing.T) {
	buf := make([]byte, spnav.PacketSize)
	buf[0] = 7 // little-endian tag 7

	ev, err := spnav.DecodeEvent(buf)
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, spnav.ErrEventType)
}

func TestDecodeEventRejectsShortBuffer(t *testing.T) {
	ev, err := spnav.DecodeEvent(make([]byte, spnav.PacketSize-1))
	assert.Nil(t, ev)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, spnav.ErrEventType)
}

func TestMotionPacketNegativeValuesSurviveEncoding(t *testing.T) {
	var buf bytes.Buffer
	p := spnav.MotionPacket{X: -1, Y: -2147483648, Z: 2147483647}
	assert.NoError(t, p.Write(&buf))

	ev, err := spnav.DecodeEvent(buf.Bytes())
	assert.NoError(t, err)
	motion, ok := ev.(gimbal.MotionEvent)
	assert.True(t, ok)
	assert.Equal(t, float64(-1), motion.Translation[0])
	assert.Equal(t, float64(-2147483648), motion.Translation[1])
	assert.Equal(t, float64(2147483647), motion.Translation[2])
}
