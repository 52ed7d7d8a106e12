// Package spnavtest provides an in-process stand-in for the spacenavd
// daemon: a unix-socket server that speaks the event wire protocol and
// broadcasts scripted packets to every connected client. It backs the
// package tests and the hardware-free demo mode.
package spnavtest

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gimbalkit/gimbal/spnav"
)

// Daemon is a fake spacenavd. Zero value is not usable; call New.
type Daemon struct {
	logger *slog.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}

	done   chan struct{}
	closed bool
}

// New returns an unstarted daemon. A nil logger discards all records.
func New(logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Daemon{
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
		done:   make(chan struct{}),
	}
}

// Listen binds the unix socket at path and starts accepting clients.
// It returns once the socket is ready for Dial.
func (d *Daemon) Listen(path string) error {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.ln = ln
	d.mu.Unlock()
	d.logger.Debug("fake daemon listening", "path", path)
	go d.acceptLoop(ln)
	return nil
}

func (d *Daemon) acceptLoop(ln net.Listener) {
	defer close(d.done)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			d.logger.Error("fake daemon accept", "error", err)
			return
		}
		d.mu.Lock()
		d.conns[conn] = struct{}{}
		d.mu.Unlock()
		d.logger.Debug("fake daemon client connected")
		go d.discardLoop(conn)
	}
}

// discardLoop consumes anything the client sends (the real daemon accepts
// configuration commands; we only need to notice the disconnect).
func (d *Daemon) discardLoop(conn net.Conn) {
	buf := make([]byte, 256)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}
	d.dropConn(conn)
	d.logger.Debug("fake daemon client disconnected")
}

func (d *Daemon) dropConn(conn net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.conns[conn]; ok {
		delete(d.conns, conn)
		_ = conn.Close()
	}
}

// Conns reports the number of currently connected clients.
func (d *Daemon) Conns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// SendMotion broadcasts one motion packet to all connected clients.
func (d *Daemon) SendMotion(p spnav.MotionPacket) {
	d.broadcast(func(conn net.Conn) error { return p.Write(conn) })
}

// SendButton broadcasts one button packet to all connected clients.
func (d *Daemon) SendButton(p spnav.ButtonPacket) {
	d.broadcast(func(conn net.Conn) error { return p.Write(conn) })
}

// SendRaw broadcasts arbitrary bytes, letting tests exercise malformed
// packets and split writes.
func (d *Daemon) SendRaw(b []byte) {
	d.broadcast(func(conn net.Conn) error {
		_, err := conn.Write(b)
		return err
	})
}

func (d *Daemon) broadcast(write func(net.Conn) error) {
	d.mu.Lock()
	targets := make([]net.Conn, 0, len(d.conns))
	for conn := range d.conns {
		targets = append(targets, conn)
	}
	d.mu.Unlock()

	for _, conn := range targets {
		if err := write(conn); err != nil {
			d.logger.Debug("fake daemon write failed, dropping client", "error", err)
			d.dropConn(conn)
		}
	}
}

// Close shuts the listener, disconnects all clients and waits for the
// accept loop to exit. Closing twice is a no-op.
func (d *Daemon) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	ln := d.ln
	conns := make([]net.Conn, 0, len(d.conns))
	for conn := range d.conns {
		conns = append(conns, conn)
	}
	d.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, conn := range conns {
		d.dropConn(conn)
	}
	if ln != nil {
		<-d.done
	}
	return err
}
