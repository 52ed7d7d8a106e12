// Package listener decouples device I/O from the host's synchronous
// update loop. One background worker per listener drains the source and
// appends decoded events into two independently activated queues; the
// consumer swaps whole queues out at its own cadence and never blocks.
package listener

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gimbalkit/gimbal"
)

// Listener buffers device events between the source's delivery context
// and a single synchronous consumer.
//
// Queues start inactive: events arriving for an inactive queue are
// dropped, not buffered. Activation, deactivation and drains must come
// from the consumer side, never from inside a push callback.
type Listener struct {
	logger *slog.Logger
	src    gimbal.Source

	mu     sync.Mutex
	motion []gimbal.MotionEvent // nil while inactive
	button []gimbal.ButtonEvent // nil while inactive

	// poll-variant state; zero for push sources
	wakeR, wakeW int
	worker       bool
	done         chan struct{}

	killOnce sync.Once
	killErr  error
}

// New wraps an already-open source and takes ownership of it: the
// listener closes the source when killed (or, for poll sources, when the
// worker observes the peer closing first). Dialing happens before
// construction, so a listener never exists without a live connection.
// On error the source remains owned by the caller.
func New(src gimbal.Source, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := &Listener{logger: logger, src: src}

	switch s := src.(type) {
	case gimbal.PollSource:
		var p [2]int
		if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
			return nil, fmt.Errorf("listener: wake pipe: %w", err)
		}
		l.wakeR, l.wakeW = p[0], p[1]
		l.worker = true
		l.done = make(chan struct{})
		go l.run(s)
	case gimbal.PushSource:
		s.Subscribe(l.append)
	default:
		return nil, fmt.Errorf("listener: source %T is neither poll nor push", src)
	}
	return l, nil
}

// run is the worker loop: a blocking multiplexed wait over the wake pipe
// and the device descriptor. All decoding happens here.
func (l *Listener) run(s gimbal.PollSource) {
	defer close(l.done)
	defer func() {
		if err := l.src.Close(); err != nil {
			l.logger.Error("closing device source", "error", err)
		}
	}()

	fds := []unix.PollFd{
		{Fd: int32(l.wakeR), Events: unix.POLLIN},
		{Fd: int32(s.Fd()), Events: unix.POLLIN},
	}
	for {
		fds[0].Revents = 0
		fds[1].Revents = 0
		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			l.logger.Error("listener poll wait", "error", err)
			return
		}
		if fds[0].Revents != 0 {
			return
		}
		if fds[1].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			if !l.drain(s) {
				return
			}
		}
	}
}

// drain empties everything currently pending so a burst never leaves
// residue behind the next poll wait. Returns false when the source is
// finished (peer closed or protocol violation).
func (l *Listener) drain(s gimbal.PollSource) bool {
	for {
		ev, err := s.PollEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.logger.Info("device source closed by peer")
			} else {
				l.logger.Error("device event decode", "error", err)
			}
			return false
		}
		if ev == nil {
			return true
		}
		l.append(ev)
	}
}

// append classifies one event into its queue, if that queue is active.
// Shared with push sources as the subscription callback.
func (l *Listener) append(ev gimbal.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch e := ev.(type) {
	case gimbal.MotionEvent:
		if l.motion != nil {
			l.motion = append(l.motion, e)
		}
	case gimbal.ButtonEvent:
		if l.button != nil {
			l.button = append(l.button, e)
		}
	}
}

// ActivateMotion starts buffering motion events. Idempotent: activating
// an active queue keeps its contents.
func (l *Listener) ActivateMotion() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.motion == nil {
		l.motion = []gimbal.MotionEvent{}
	}
}

// DeactivateMotion stops buffering and discards anything undrained.
func (l *Listener) DeactivateMotion() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.motion = nil
}

// ActivateButtons starts buffering button events.
func (l *Listener) ActivateButtons() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.button == nil {
		l.button = []gimbal.ButtonEvent{}
	}
}

// DeactivateButtons stops buffering and discards anything undrained.
func (l *Listener) DeactivateButtons() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.button = nil
}

// MotionEvents atomically swaps the motion queue for an empty one and
// returns the drained batch in arrival order. Draining an inactive queue
// returns nil.
func (l *Listener) MotionEvents() []gimbal.MotionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.motion == nil {
		return nil
	}
	out := l.motion
	l.motion = []gimbal.MotionEvent{}
	return out
}

// ButtonEvents atomically swaps the button queue for an empty one and
// returns the drained batch in arrival order. Draining an inactive queue
// returns nil.
func (l *Listener) ButtonEvents() []gimbal.ButtonEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.button == nil {
		return nil
	}
	out := l.button
	l.button = []gimbal.ButtonEvent{}
	return out
}

// Kill stops event delivery and blocks until it has fully stopped. For
// poll sources this wakes the worker, joins it (the worker closes the
// connection on its way out) and releases the wake pipe. For push
// sources it closes the source, whose Close contract stops callbacks
// before returning. Kill is safe to call more than once; concurrent
// callers all block until the first completes.
func (l *Listener) Kill() error {
	l.killOnce.Do(func() {
		if !l.worker {
			l.killErr = l.src.Close()
			return
		}
		if _, err := unix.Write(l.wakeW, []byte{'k'}); err != nil {
			// Worker may already be gone (peer EOF); the join below
			// still succeeds because run closes done on every exit.
			l.logger.Debug("listener wake write", "error", err)
		}
		<-l.done
		_ = unix.Close(l.wakeW)
		_ = unix.Close(l.wakeR)
	})
	return l.killErr
}
