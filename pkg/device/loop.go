package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartteach/masterlink/pkg/arm"
	"github.com/smartteach/masterlink/pkg/frame"
)

var (
	// ErrLoopClosed ends Receive after the loop is closed.
	ErrLoopClosed = errors.New("device: local loop closed")
	// ErrNoHome rejects go-home on the local bus. The master arms are an
	// encoder source with no motion target to drive to.
	ErrNoHome = errors.New("device: go home is not available on the local bus")
)

// armIO is the per-arm hardware surface the loop drives. *Arm satisfies it.
type armIO interface {
	ID() frame.ArmID
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	ReadFrame(ctx context.Context, state arm.State) (frame.TelemetryFrame, error)
}

// armState tracks what a command last established for one arm.
type armState struct {
	state arm.State
	// applied becomes true once a command has pushed a torque state to the
	// servos; until then the first command always applies, whatever it is.
	applied bool
}

// Loop serves one streaming session from the local servo bus instead of a
// remote slave: commands toggle torque on the master's own servos
// (position control holds, gravity compensation releases), and telemetry
// is sampled from their encoders at the tick interval. It plugs in where a
// transport session would, so streaming, recording, and export behave
// exactly as they do against a slave.
type Loop struct {
	arms   []armIO
	ticker *time.Ticker
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	states  map[frame.ArmID]*armState
	pending [][]byte

	closeOnce sync.Once
}

// NewLoop builds a session loop over the device's connected arms. Tick is
// the telemetry sampling interval and defaults to 50ms. Build a fresh loop
// for every session; Close shuts down the loop, not the device.
func NewLoop(d *Device, tick time.Duration, logger *slog.Logger) (*Loop, error) {
	var arms []armIO
	if d.Left != nil {
		arms = append(arms, d.Left)
	}
	if d.Right != nil {
		arms = append(arms, d.Right)
	}
	return newLoop(arms, tick, logger)
}

func newLoop(arms []armIO, tick time.Duration, logger *slog.Logger) (*Loop, error) {
	if len(arms) == 0 {
		return nil, fmt.Errorf("device: no arms to serve")
	}
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	states := make(map[frame.ArmID]*armState, len(arms))
	for _, a := range arms {
		// Telemetry sampled before the first command is stamped as
		// position control, matching the arm state machines at startup.
		states[a.ID()] = &armState{state: arm.State{Arm: a.ID(), Mode: frame.PositionControl}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		arms:   arms,
		ticker: time.NewTicker(tick),
		logger: logger.With("component", "device"),
		ctx:    ctx,
		cancel: cancel,
		states: states,
	}, nil
}

// Send applies an outbound message to the local hardware. Commands toggle
// servo torque to track the commanded mode; home requests fail with
// ErrNoHome.
func (l *Loop) Send(payload []byte) error {
	msg, err := frame.DecodeMessage(payload)
	if err != nil {
		return err
	}
	switch msg.Kind {
	case frame.KindHome:
		return ErrNoHome
	case frame.KindCommand:
		for _, a := range l.arms {
			cmd, ok := msg.Command.For(a.ID())
			if !ok {
				continue
			}
			if err := l.apply(a, cmd); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("device: unhandled message kind %q", msg.Kind)
	}
}

// apply pushes the commanded torque state to one arm's servos and records
// it for telemetry stamping. Torque is binary at the bus level; the scale
// is carried through into the sampled frames.
func (l *Loop) apply(a armIO, cmd frame.ArmCommand) error {
	l.mu.Lock()
	as := l.states[a.ID()]
	modeChanged := !as.applied || as.state.Mode != cmd.Mode
	l.mu.Unlock()

	if modeChanged {
		var err error
		if cmd.Mode == frame.GravityCompensation {
			err = a.Disable(l.ctx)
		} else {
			err = a.Enable(l.ctx)
		}
		if err != nil {
			return fmt.Errorf("apply %s torque: %w", cmd.Mode, err)
		}
		l.logger.Info("torque applied", "arm", a.ID(), "mode", cmd.Mode)
	}

	l.mu.Lock()
	as.state = arm.State{Arm: a.ID(), Mode: cmd.Mode, TorqueScale: cmd.TorqueScale}
	as.applied = true
	l.mu.Unlock()
	return nil
}

// Receive blocks until the next sampled telemetry frame. With both arms
// connected each tick yields one frame per arm; a bus read fault ends the
// session the same way transport loss would.
func (l *Loop) Receive() ([]byte, error) {
	if payload, ok := l.takePending(); ok {
		return payload, nil
	}
	select {
	case <-l.ctx.Done():
		return nil, ErrLoopClosed
	case <-l.ticker.C:
		payloads, err := l.sample()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.pending = append(l.pending, payloads[1:]...)
		l.mu.Unlock()
		return payloads[0], nil
	}
}

func (l *Loop) takePending() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	payload := l.pending[0]
	l.pending = l.pending[1:]
	return payload, true
}

func (l *Loop) sample() ([][]byte, error) {
	payloads := make([][]byte, 0, len(l.arms))
	for _, a := range l.arms {
		l.mu.Lock()
		state := l.states[a.ID()].state
		l.mu.Unlock()

		tf, err := a.ReadFrame(l.ctx, state)
		if err != nil {
			return nil, fmt.Errorf("sample %s arm: %w", a.ID(), err)
		}
		payload, err := frame.EncodeTelemetry(tf)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

// Close ends the session loop and unblocks a pending Receive. The device
// itself stays open for the next session.
func (l *Loop) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.ticker.Stop()
	})
	return nil
}
