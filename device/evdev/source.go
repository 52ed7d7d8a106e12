package evdev

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"

	gevdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"

	"github.com/gimbalkit/gimbal"
)

const maxEventNodes = 32

// Source is a pollable event source over one /dev/input/eventN node.
// It implements gimbal.PollSource; callers poll Fd and drain with
// PollEvent, exactly as with the daemon socket client.
type Source struct {
	logger *slog.Logger
	dev    *gevdev.InputDevice
	asm    *Assembler
	fd     int

	grab    bool
	grabbed bool
	scale   float64

	pending []gimbal.Event
	closed  bool
}

// Option configures Open.
type Option func(*Source)

// WithGrab takes exclusive hold of the device so its motion stops
// reaching the desktop as scroll/zoom input.
func WithGrab() Option {
	return func(s *Source) { s.grab = true }
}

// WithAxisScale overrides the full-deflection magnitude used to
// normalize axis values.
func WithAxisScale(scale float64) Option {
	return func(s *Source) { s.scale = scale }
}

// Open opens an input event node.
func Open(path string, logger *slog.Logger, opts ...Option) (*Source, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dev, err := gevdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input device: %w", err)
	}
	s := &Source{logger: logger, dev: dev}
	for _, opt := range opts {
		opt(s)
	}
	s.asm = NewAssembler(s.scale)
	if s.grab {
		if err := dev.Grab(); err != nil {
			dev.File.Close()
			return nil, fmt.Errorf("grabbing input device: %w", err)
		}
		s.grabbed = true
	}
	s.fd = int(dev.File.Fd())
	logger.Debug("input device opened",
		"path", path, "name", dev.Name,
		"vendor", fmt.Sprintf("%04x", dev.Vendor),
		"product", fmt.Sprintf("%04x", dev.Product))
	return s, nil
}

// Name returns the kernel device name.
func (s *Source) Name() string { return s.dev.Name }

// Fd returns the pollable descriptor.
func (s *Source) Fd() int { return s.fd }

// PollEvent returns the next pending event without blocking: (nil, nil)
// when the device has nothing buffered, io.EOF once the device is gone.
func (s *Source) PollEvent() (gimbal.Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		ready, err := s.readable()
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, nil
		}
		raw, err := s.dev.ReadOne()
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN):
				return nil, nil
			case errors.Is(err, io.EOF), errors.Is(err, unix.ENODEV), errors.Is(err, fs.ErrClosed):
				return nil, io.EOF
			default:
				return nil, fmt.Errorf("reading input event: %w", err)
			}
		}
		s.pending = append(s.pending, s.asm.Ingest(*raw)...)
	}
}

// readable reports whether a read would complete immediately. The
// kernel delivers whole events, so a readable descriptor never blocks a
// single-event read.
func (s *Source) readable() (bool, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("polling input device: %w", err)
		}
		if n == 0 {
			return false, nil
		}
		return fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
	}
}

// Close releases the grab, if any, and closes the device node. Safe to
// call more than once.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.grabbed {
		if err := s.dev.Release(); err != nil {
			s.logger.Debug("releasing input device grab failed", "error", err)
		}
	}
	return s.dev.File.Close()
}

// DeviceInfo describes one probed input node.
type DeviceInfo struct {
	Path    string
	Name    string
	Vendor  uint16
	Product uint16
}

// Detect probes the standard input nodes and returns those accepted by
// match; a nil match accepts everything openable.
func Detect(match func(vendor, product uint16) bool) ([]DeviceInfo, error) {
	return DetectIn("/dev/input", match)
}

// DetectIn is Detect over an explicit device directory.
func DetectIn(dir string, match func(vendor, product uint16) bool) ([]DeviceInfo, error) {
	var found []DeviceInfo
	for i := 0; i < maxEventNodes; i++ {
		path := filepath.Join(dir, fmt.Sprintf("event%d", i))
		dev, err := gevdev.Open(path)
		if err != nil {
			continue
		}
		info := DeviceInfo{
			Path:    path,
			Name:    dev.Name,
			Vendor:  dev.Vendor,
			Product: dev.Product,
		}
		dev.File.Close()
		if match == nil || match(info.Vendor, info.Product) {
			found = append(found, info)
		}
	}
	return found, nil
}
