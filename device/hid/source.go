package hid

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/gimbalkit/gimbal"
)

// Source reads raw reports from a hidraw node and pushes decoded events
// to subscribers. It implements gimbal.PushSource: there is no pollable
// descriptor contract here, a dedicated reader goroutine delivers
// events as they arrive.
type Source struct {
	logger *slog.Logger
	rc     io.ReadCloser
	dec    *Decoder

	mu   sync.Mutex
	subs []func(gimbal.Event)

	packetLog func(pkt []byte)
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Source.
type Option func(*Source)

// WithPacketLog installs a hook that sees every raw report before it is
// decoded.
func WithPacketLog(fn func(pkt []byte)) Option {
	return func(s *Source) { s.packetLog = fn }
}

// Open opens a hidraw device node and starts reading it with the given
// spec.
func Open(path string, spec DeviceSpec, logger *slog.Logger, opts ...Option) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening hid device: %w", err)
	}
	return NewSource(f, spec, logger, opts...), nil
}

// NewSource starts a reader over an arbitrary report stream. The source
// takes ownership of rc.
func NewSource(rc io.ReadCloser, spec DeviceSpec, logger *slog.Logger, opts ...Option) *Source {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Source{
		logger: logger,
		rc:     rc,
		dec:    NewDecoder(spec),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Subscribe registers a callback invoked from the reader goroutine for
// every decoded event, in report order.
func (s *Source) Subscribe(fn func(gimbal.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Source) dispatch(ev gimbal.Event) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (s *Source) run() {
	defer close(s.done)
	buf := make([]byte, 64)
	for {
		n, err := s.rc.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				s.logger.Debug("hid stream ended")
			} else {
				s.logger.Error("hid read failed", "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		if s.packetLog != nil {
			s.packetLog(buf[:n])
		}
		for _, ev := range s.dec.Report(buf[:n]) {
			s.dispatch(ev)
		}
	}
}

// Close stops the reader and closes the underlying stream. Safe to call
// more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.rc.Close()
		<-s.done
	})
	return s.closeErr
}
