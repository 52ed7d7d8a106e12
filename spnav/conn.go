package spnav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/gimbalkit/gimbal"
)

const (
	// DefaultSocketPath is where spacenavd listens when not configured
	// otherwise.
	DefaultSocketPath = "/var/run/spnav.sock"

	// socketEnv overrides the socket path, mirroring libspnav.
	socketEnv = "SPNAV_SOCKET"
)

// ErrConnect marks a failed connection to the daemon socket.
var ErrConnect = errors.New("spnav: cannot connect to daemon")

// SocketPath resolves the daemon socket path: the explicit argument if
// non-empty, then $SPNAV_SOCKET, then DefaultSocketPath.
func SocketPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(socketEnv); env != "" {
		return env
	}
	return DefaultSocketPath
}

// Option configures a Conn at dial time.
type Option func(*Conn)

// WithPacketLog installs a hook invoked with every complete packet read
// from the daemon, before decoding. Used for raw wire tracing.
func WithPacketLog(fn func(pkt []byte)) Option {
	return func(c *Conn) { c.packetLog = fn }
}

// Conn is a non-blocking client connection to the device daemon. It is
// owned by a single goroutine after construction; the listener's worker
// both polls and closes it.
type Conn struct {
	fd        int
	path      string
	buf       [PacketSize]byte
	have      int
	closed    bool
	packetLog func([]byte)
}

// Dial connects to the daemon socket (see SocketPath for resolution) and
// switches the descriptor to non-blocking mode so PollEvent never stalls
// the caller.
func Dial(path string, opts ...Option) (*Conn, error) {
	path = SocketPath(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %w", ErrConnect, err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, path, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%w: set nonblock: %w", ErrConnect, err)
	}

	c := &Conn{fd: fd, path: path}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fd returns the socket descriptor for readiness polling.
func (c *Conn) Fd() int { return c.fd }

// Path returns the socket path this connection was dialed against.
func (c *Conn) Path() string { return c.path }

// PollEvent reads and decodes at most one event. It never blocks: with no
// complete packet pending it returns (nil, nil), buffering any partial
// packet for the next call. io.EOF means the daemon closed the connection.
// A decode failure (unknown tag) wraps ErrEventType and poisons the
// stream; callers must stop polling and close.
func (c *Conn) PollEvent() (gimbal.Event, error) {
	for c.have < PacketSize {
		n, err := unix.Read(c.fd, c.buf[c.have:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("spnav: read: %w", err)
		case n == 0:
			return nil, io.EOF
		}
		c.have += n
	}
	c.have = 0

	if c.packetLog != nil {
		c.packetLog(c.buf[:])
	}
	return DecodeEvent(c.buf[:])
}

// Close releases the socket. Closing twice is a no-op.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}
