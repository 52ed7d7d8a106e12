package spnav_test

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/spnav"
	"github.com/gimbalkit/gimbal/spnavtest"
)

// startDaemon brings up a fake daemon on a per-test socket and waits for
// the given connection count after dialing.
func startDaemon(t *testing.T) (*spnavtest.Daemon, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spnav.sock")
	daemon := spnavtest.New(nil)
	require.NoError(t, daemon.Listen(path))
	t.Cleanup(func() { _ = daemon.Close() })
	return daemon, path
}

// pollOne waits for the descriptor to become readable and polls until one
// event (or error) is produced, tolerating partial arrival.
func pollOne(t *testing.T, conn *spnav.Conn) (gimbal.Event, error) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fds := []unix.PollFd{{Fd: int32(conn.Fd()), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, 100); err != nil && err != unix.EINTR {
			t.Fatalf("poll: %v", err)
		}
		ev, err := conn.PollEvent()
		if ev != nil || err != nil {
			return ev, err
		}
	}
	t.Fatal("no event within deadline")
	return nil, nil
}

func waitConnected(t *testing.T, daemon *spnavtest.Daemon) {
	t.Helper()
	assert.Eventually(t, func() bool { return daemon.Conns() == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestDialFailsWithoutDaemon(t *testing.T) {
	conn, err := spnav.Dial(filepath.Join(t.TempDir(), "missing.sock"))
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, spnav.ErrConnect)
}

func TestSocketPathResolution(t *testing.T) {
	t.Setenv("SPNAV_SOCKET", "")
	assert.Equal(t, spnav.DefaultSocketPath, spnav.SocketPath(""))
	assert.Equal(t, "/tmp/explicit.sock", spnav.SocketPath("/tmp/explicit.sock"))

	t.Setenv("SPNAV_SOCKET", "/tmp/env.sock")
	assert.Equal(t, "/tmp/env.sock", spnav.SocketPath(""))
	assert.Equal(t, "/tmp/explicit.sock", spnav.SocketPath("/tmp/explicit.sock"))
}

func TestPollEventEmptyThenBurst(t *testing.T) {
	daemon, path := startDaemon(t)

	conn, err := spnav.Dial(path)
	require.NoError(t, err)
	defer conn.Close()
	waitConnected(t, daemon)

	// Nothing sent yet: non-blocking poll reports no event.
	ev, err := conn.PollEvent()
	assert.Nil(t, ev)
	assert.NoError(t, err)

	daemon.SendMotion(spnav.MotionPacket{X: 1, RZ: -5, Period: 8})
	daemon.SendMotion(spnav.MotionPacket{Y: 2})
	daemon.SendButton(spnav.ButtonPacket{Pressed: true, Button: 3})

	first, err := pollOne(t, conn)
	assert.NoError(t, err)
	assert.Equal(t, gimbal.MotionEvent{
		Translation: mgl64.Vec3{1, 0, 0},
		Rotation:    mgl64.Vec3{0, 0, -5},
		Period:      8,
	}, first)

	second, err := pollOne(t, conn)
	assert.NoError(t, err)
	assert.Equal(t, gimbal.MotionEvent{Translation: mgl64.Vec3{0, 2, 0}}, second)

	third, err := pollOne(t, conn)
	assert.NoError(t, err)
	assert.Equal(t, gimbal.ButtonEvent{Button: 3, Pressed: true}, third)

	// Burst fully drained.
	ev, err = conn.PollEvent()
	assert.Nil(t, ev)
	assert.NoError(t, err)
}

func TestPollEventReassemblesSplitPacket(t *testing.T) {
	daemon, path := startDaemon(t)

	conn, err := spnav.Dial(path)
	require.NoError(t, err)
	defer conn.Close()
	waitConnected(t, daemon)

	var pkt bytes.Buffer
	p := spnav.MotionPacket{X: 7, Z: -7, Period: 1}
	require.NoError(t, p.Write(&pkt))

	daemon.SendRaw(pkt.Bytes()[:10])
	assert.Eventually(t, func() bool {
		ev, err := conn.PollEvent()
		return ev == nil && err == nil
	}, time.Second, 5*time.Millisecond)

	daemon.SendRaw(pkt.Bytes()[10:])
	ev, err := pollOne(t, conn)
	assert.NoError(t, err)
	assert.Equal(t, gimbal.MotionEvent{
		Translation: mgl64.Vec3{7, 0, -7},
		Period:      1,
	}, ev)
}

func TestPollEventUnknownTag(t *testing.T) {
	daemon, path := startDaemon(t)

	conn, err := spnav.Dial(path)
	require.NoError(t, err)
	defer conn.Close()
	waitConnected(t, daemon)

	bad := make([]byte, spnav.PacketSize)
	bad[0] = 9
	daemon.SendRaw(bad)

	ev, err := pollOne(t, conn)
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, spnav.ErrEventType)
}

func TestPollEventEOFOnDaemonClose(t *testing.T) {
	daemon, path := startDaemon(t)

	conn, err := spnav.Dial(path)
	require.NoError(t, err)
	defer conn.Close()
	waitConnected(t, daemon)

	require.NoError(t, daemon.Close())

	ev, err := pollOne(t, conn)
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCloseTwiceIsNoOp(t *testing.T) {
	_, path := startDaemon(t)

	conn, err := spnav.Dial(path)
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestWithPacketLogSeesRawBytes(t *testing.T) {
	daemon, path := startDaemon(t)

	var logged [][]byte
	conn, err := spnav.Dial(path, spnav.WithPacketLog(func(pkt []byte) {
		logged = append(logged, append([]byte(nil), pkt...))
	}))
	require.NoError(t, err)
	defer conn.Close()
	waitConnected(t, daemon)

	daemon.SendButton(spnav.ButtonPacket{Pressed: true, Button: 1})
	_, err = pollOne(t, conn)
	assert.NoError(t, err)

	require.Len(t, logged, 1)
	assert.Len(t, logged[0], spnav.PacketSize)
	assert.Equal(t, byte(spnav.TagButtonPress), logged[0][0])
}
