// Package relay republishes a local spacenavd socket on a TCP address so
// a machine without the device attached can still read its events. The
// byte stream is copied verbatim in both directions; clients speak the
// ordinary daemon protocol to the relay. With a key configured the TCP
// leg is sealed frame by frame while the unix leg stays plaintext.
package relay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gimbalkit/gimbal/internal/log"
)

type Server struct {
	listenAddr  string
	socketPath  string
	dialTimeout time.Duration
	key         []byte
	logger      *slog.Logger
	rawLogger   log.RawLogger
	ln          net.Listener
	ready       chan struct{}
	readyOnce   sync.Once
}

// New builds a relay from listenAddr to the daemon endpoint at socketPath.
// A path containing a slash is dialed as a unix socket, anything else as
// TCP, so relays can also chain. key is nil for a plaintext relay or the
// 32 bytes from DeriveKey.
func New(listenAddr, socketPath string, dialTimeout time.Duration, key []byte, logger *slog.Logger, rawLogger log.RawLogger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if rawLogger == nil {
		rawLogger = log.NewRaw(nil)
	}
	return &Server{
		listenAddr:  listenAddr,
		socketPath:  socketPath,
		dialTimeout: dialTimeout,
		key:         key,
		logger:      logger,
		rawLogger:   rawLogger,
		ready:       make(chan struct{}),
	}
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	s.ln = ln
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("Relay listening", "addr", s.listenAddr, "upstream", s.socketPath, "sealed", len(s.key) > 0)

	for {
		clientConn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || strings.Contains(strings.ToLower(err.Error()), "use of closed network connection") {
				s.logger.Info("Relay stopped")
				return nil
			}
			s.logger.Error("Accept error", "error", err)
			continue
		}
		s.logger.Info("Client connected", "remote", clientConn.RemoteAddr())
		go s.handleRelay(clientConn)
	}
}

// Ready returns a channel that is closed once the server has bound its
// listen address.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops the relay by closing its listener. In-flight connections
// keep running until either side disconnects.
func (s *Server) Close() error {
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) handleRelay(clientConn net.Conn) {
	defer clientConn.Close()

	if len(s.key) > 0 {
		sealed, err := WrapConn(clientConn, s.key, true)
		if err != nil {
			s.logger.Error("Failed to seal client connection", "error", err)
			return
		}
		clientConn = sealed
	}

	network := "tcp"
	if strings.Contains(s.socketPath, "/") {
		network = "unix"
	}
	upstreamConn, err := net.DialTimeout(network, s.socketPath, s.dialTimeout)
	if err != nil {
		s.logger.Error("Failed to connect to daemon", "upstream", s.socketPath, "error", err)
		return
	}
	defer upstreamConn.Close()

	s.logger.Info("Relaying connection", "client", clientConn.RemoteAddr(), "upstream", s.socketPath)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		bytes, err := s.copyWithLogging(upstreamConn, clientConn, true, nil)
		if err != nil && !isExpectedDisconnect(err) {
			s.logger.Debug("Client->Daemon copy error", "error", err)
		}
		s.logger.Debug("Client->Daemon stream ended", "bytes", bytes)
		halfClose(upstreamConn, true)
		halfClose(clientConn, false)
	}()

	go func() {
		defer wg.Done()
		bytes, err := s.copyWithLogging(clientConn, upstreamConn, false, NewParser(s.logger))
		if err != nil && !isExpectedDisconnect(err) {
			s.logger.Debug("Daemon->Client copy error", "error", err)
		}
		s.logger.Debug("Daemon->Client stream ended", "bytes", bytes)
		halfClose(clientConn, true)
		halfClose(upstreamConn, false)
	}()

	wg.Wait()
	s.logger.Info("Connection closed", "client", clientConn.RemoteAddr())
}

// copyWithLogging pumps src into dst until either side ends, feeding the
// raw logger and, on the daemon->client leg, the event parser. Unlike a
// request/response proxy there is no first-packet deadline: a client that
// only reads and a daemon with no motion to report are both silent for
// arbitrarily long, and that is fine.
func (s *Server) copyWithLogging(dst net.Conn, src net.Conn, clientToDaemon bool, parser *Parser) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			s.rawLogger.Log(clientToDaemon, buf[:n])

			if parser != nil {
				parser.Parse(buf[:n])
			}

			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
			if wn != n {
				return total, fmt.Errorf("short write: wrote %d of %d", wn, n)
			}
		}

		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

func halfClose(conn net.Conn, write bool) {
	if sc, ok := conn.(*secureConn); ok {
		conn = sc.Conn
	}
	if write {
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
	} else {
		if cr, ok := conn.(interface{ CloseRead() error }); ok {
			_ = cr.CloseRead()
		}
	}
}

func isExpectedDisconnect(err error) bool {
	if err == nil || err == io.EOF {
		return true
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "connection reset") ||
		strings.Contains(e, "broken pipe") ||
		strings.Contains(e, "forcibly closed")
}
