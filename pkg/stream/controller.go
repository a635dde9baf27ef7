// Package stream orchestrates the continuous command/telemetry loop for
// one streaming session: a fixed-tick send loop serializing the current
// arm states, and a receive drain feeding the recording buffer and the
// display sink.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartteach/masterlink/pkg/arm"
	"github.com/smartteach/masterlink/pkg/frame"
	"github.com/smartteach/masterlink/pkg/record"
)

var (
	// ErrActive rejects Start while a session is already running.
	ErrActive = errors.New("stream: session already active")
	// ErrIdle rejects commands that need an active session.
	ErrIdle = errors.New("stream: no active session")
)

// Status is the controller lifecycle state.
type Status string

const (
	Idle   Status = "idle"
	Active Status = "active"
)

// Conn is the transport surface the controller drives. *transport.Session
// satisfies it.
type Conn interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
	Close() error
}

// DialFunc opens a transport connection to target.
type DialFunc func(target string) (Conn, error)

// EventType classifies status events emitted by the controller.
type EventType string

const (
	// Started: a session became active.
	Started EventType = "started"
	// Stopped: the operator stopped the session.
	Stopped EventType = "stopped"
	// Disconnected: the transport broke while active; the controller is
	// back to idle and will not reconnect on its own.
	Disconnected EventType = "disconnected"
	// Warning: a recoverable fault, e.g. a dropped undecodable frame.
	Warning EventType = "warning"
)

// Event is a status change surfaced to the control surface.
type Event struct {
	Type    EventType
	Session uuid.UUID
	Target  string
	Message string
	At      time.Time
}

// Config holds the controller's collaborators.
type Config struct {
	Dial     DialFunc
	Left     *arm.StateMachine
	Right    *arm.StateMachine
	Recorder *record.Buffer
	// Tick is the send interval. Defaults to 50ms (20 Hz).
	Tick   time.Duration
	Logger *slog.Logger
}

// session is the per-Start state. A fresh one is built on every Start so a
// stopped session can never bleed into the next.
type session struct {
	id        uuid.UUID
	target    string
	startedAt time.Time
	conn      Conn

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	// cause is the transport error that ended the session, nil for a
	// deliberate Stop. Written once, inside stopOnce.
	cause error
}

func (s *session) shutdown(cause error) {
	s.stopOnce.Do(func() {
		s.cause = cause
		close(s.stop)
		s.conn.Close()
	})
}

// Controller runs at most one streaming session at a time.
type Controller struct {
	dial     DialFunc
	left     *arm.StateMachine
	right    *arm.StateMachine
	recorder *record.Buffer
	tick     time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	sess *session

	frames chan frame.TelemetryFrame
	events chan Event
}

// New creates an idle controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Dial == nil {
		return nil, fmt.Errorf("stream: dial function is required")
	}
	if cfg.Left == nil || cfg.Right == nil {
		return nil, fmt.Errorf("stream: both arm state machines are required")
	}
	if cfg.Recorder == nil {
		return nil, fmt.Errorf("stream: recorder is required")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 50 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		dial:     cfg.Dial,
		left:     cfg.Left,
		right:    cfg.Right,
		recorder: cfg.Recorder,
		tick:     cfg.Tick,
		logger:   cfg.Logger.With("component", "stream"),
		frames:   make(chan frame.TelemetryFrame, 1),
		events:   make(chan Event, 16),
	}, nil
}

// Frames returns the display sink. Slow consumers lose old frames, never
// new ones; the recording buffer is fed separately and drops nothing.
func (c *Controller) Frames() <-chan frame.TelemetryFrame {
	return c.frames
}

// Events returns the status event channel.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Status returns Idle or Active.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return Active
	}
	return Idle
}

// Session returns the active session's ID, target, and start time. ok is
// false while idle.
func (c *Controller) Session() (id uuid.UUID, target string, startedAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return uuid.UUID{}, "", time.Time{}, false
	}
	return c.sess.id, c.sess.target, c.sess.startedAt, true
}

// Start connects to target and begins the send/receive loops. Fails with
// ErrActive if a session is already running; connection failures pass
// through from the dialer and leave the controller idle.
func (c *Controller) Start(target string) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return ErrActive
	}
	c.mu.Unlock()

	conn, err := c.dial(target)
	if err != nil {
		return err
	}

	s := &session{
		id:        uuid.New(),
		target:    target,
		startedAt: time.Now(),
		conn:      conn,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	c.mu.Lock()
	if c.sess != nil {
		// A concurrent Start won the race while we were dialing.
		c.mu.Unlock()
		conn.Close()
		return ErrActive
	}
	c.sess = s
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.sendLoop(s)
	}()
	go func() {
		defer wg.Done()
		c.recvLoop(s)
	}()
	go func() {
		wg.Wait()
		c.mu.Lock()
		c.sess = nil
		c.mu.Unlock()
		close(s.done)
		if s.cause != nil {
			c.logger.Warn("session lost", "session", s.id, "target", s.target, "error", s.cause)
			c.emit(Event{Type: Disconnected, Session: s.id, Target: s.target, Message: s.cause.Error()})
		} else {
			c.logger.Info("session stopped", "session", s.id, "target", s.target)
			c.emit(Event{Type: Stopped, Session: s.id, Target: s.target})
		}
	}()

	c.logger.Info("session started", "session", s.id, "target", target, "tick", c.tick)
	c.emit(Event{Type: Started, Session: s.id, Target: target})
	return nil
}

// Stop halts the loops, closes the transport, and blocks until both loops
// have fully quiesced, so a subsequent Start never races a lingering loop.
// No-op while idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return
	}
	s.shutdown(nil)
	<-s.done
}

// GoHome validates the go-home command against the arm's policy and sends
// it over the active session. Fails with ErrIdle while not streaming.
func (c *Controller) GoHome(id frame.ArmID) error {
	m, err := c.machine(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return ErrIdle
	}
	return m.GoHome(func(id frame.ArmID) error {
		payload, err := frame.EncodeHome(frame.HomeRequest{Arm: id})
		if err != nil {
			return err
		}
		return s.conn.Send(payload)
	})
}

func (c *Controller) machine(id frame.ArmID) (*arm.StateMachine, error) {
	switch id {
	case frame.Left:
		return c.left, nil
	case frame.Right:
		return c.right, nil
	default:
		return nil, fmt.Errorf("%w: unknown arm %q", arm.ErrInvalidParameter, id)
	}
}

// sendLoop serializes both arm snapshots on every tick. A stop signal is
// honored between ticks, so the frame in flight always completes: no
// partial frames on shutdown.
func (c *Controller) sendLoop(s *session) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			cmd := frame.CommandFrame{
				Left:  c.left.Snapshot().Command(),
				Right: c.right.Snapshot().Command(),
			}
			payload, err := frame.EncodeCommand(cmd)
			if err != nil {
				// Encoding a validated snapshot cannot fail in practice.
				c.logger.Error("encode command", "error", err)
				continue
			}
			if err := s.conn.Send(payload); err != nil {
				s.shutdown(err)
				return
			}
		}
	}
}

// recvLoop drains telemetry into the recording buffer and the display
// sink. Undecodable frames are dropped with a warning; only transport loss
// ends the loop.
func (c *Controller) recvLoop(s *session) {
	for {
		payload, err := s.conn.Receive()
		if err != nil {
			select {
			case <-s.stop:
				// Deliberate shutdown closed the connection under us.
			default:
				s.shutdown(err)
			}
			return
		}

		tf, err := frame.DecodeTelemetry(payload)
		if err != nil {
			c.logger.Warn("dropped undecodable frame", "session", s.id, "error", err)
			c.emit(Event{Type: Warning, Session: s.id, Target: s.target, Message: err.Error()})
			continue
		}

		c.recorder.Append(tf)
		c.pushFrame(tf)
	}
}

// pushFrame delivers to the display sink, replacing a stale frame if the
// consumer is behind.
func (c *Controller) pushFrame(f frame.TelemetryFrame) {
	select {
	case c.frames <- f:
	default:
		select {
		case <-c.frames:
		default:
		}
		select {
		case c.frames <- f:
		default:
		}
	}
}

// emit delivers a status event, dropping it if the consumer is not
// listening.
func (c *Controller) emit(e Event) {
	e.At = time.Now()
	select {
	case c.events <- e:
	default:
	}
}
