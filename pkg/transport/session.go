// Package transport owns one bidirectional streaming connection to a
// remote endpoint, carried over a websocket. The frame codec is the
// payload boundary; this package moves opaque byte messages.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStreamBroken signals transport loss on an established session. The
// streaming controller observes it and transitions to idle.
var ErrStreamBroken = errors.New("transport: stream broken")

// ConnectReason classifies a failed connection attempt.
type ConnectReason string

const (
	Unreachable ConnectReason = "unreachable"
	Timeout     ConnectReason = "timeout"
	Refused     ConnectReason = "refused"
)

// ConnectError reports a handshake that did not complete.
type ConnectError struct {
	Target string
	Reason ConnectReason
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s (%s): %v", e.Target, e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Session is one established streaming connection. Receive is an infinite
// sequence until the peer or Close ends it; a closed session is not
// restartable, dial a new one.
type Session struct {
	conn      *websocket.Conn
	target    string
	logger    *slog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial opens a streaming session to target (host:port). The handshake is
// bounded by timeout; failures are classified as unreachable, timeout, or
// refused.
func Dial(target string, timeout time.Duration, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u := url.URL{Scheme: "ws", Host: target, Path: "/stream"}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, &ConnectError{Target: target, Reason: classifyDial(err), Err: err}
	}

	logger = logger.With("component", "transport", "target", target)
	logger.Info("session established")
	return &Session{conn: conn, target: target, logger: logger}, nil
}

func classifyDial(err error) ConnectReason {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Refused
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Unreachable
}

// Target returns the remote endpoint this session is connected to.
func (s *Session) Target() string {
	return s.target
}

// Send writes one binary message. Safe for concurrent use with Receive but
// serialized against other Sends.
func (s *Session) Send(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamBroken, err)
	}
	return nil
}

// Receive blocks until the next message arrives. Returns ErrStreamBroken
// once the connection is lost or closed; after that the session is dead.
func (s *Session) Receive() ([]byte, error) {
	_, payload, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamBroken, err)
	}
	return payload, nil
}

// Close tears the session down. Safe to call more than once; it also
// unblocks a pending Receive.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		// Best effort: tell the peer before dropping the TCP connection.
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
		s.logger.Info("session closed")
	})
	return s.closeErr
}
