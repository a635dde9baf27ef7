// Package arm tracks the control mode of one master arm. Two independent
// instances run per device, one for each arm; they share no state, so
// concurrent commands to different arms never contend.
package arm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/smartteach/masterlink/pkg/frame"
)

var (
	// ErrInvalidState rejects a command that is not legal in the arm's
	// current control mode.
	ErrInvalidState = errors.New("arm: command not valid in current mode")
	// ErrInvalidParameter rejects an out-of-range command parameter.
	ErrInvalidParameter = errors.New("arm: parameter out of range")
)

// HomePolicy decides whether a return-to-home command is accepted while the
// arm is in gravity compensation. The restriction is a caller-level policy,
// not a mode invariant.
type HomePolicy string

const (
	// HomeAlways accepts go-home in either mode.
	HomeAlways HomePolicy = "always"
	// HomePositionOnly accepts go-home only in position control.
	HomePositionOnly HomePolicy = "position_control_only"
)

// Valid reports whether the policy is a known value.
func (p HomePolicy) Valid() bool {
	return p == HomeAlways || p == HomePositionOnly
}

// State is a consistent snapshot of one arm.
//
// TorqueScale is only settable while in gravity compensation; in position
// control it holds its last committed value.
type State struct {
	Arm         frame.ArmID
	Mode        frame.Mode
	TorqueScale float64
}

// Command converts the snapshot into its wire command form.
func (s State) Command() frame.ArmCommand {
	return frame.ArmCommand{Arm: s.Arm, Mode: s.Mode, TorqueScale: s.TorqueScale}
}

// StateMachine validates and applies operator commands for one arm.
// Single writer (the control surface), multiple readers (the send loop):
// Snapshot never observes a torn state.
type StateMachine struct {
	mu     sync.RWMutex
	state  State
	policy HomePolicy
}

// New returns a state machine in position control with torque scale zero.
func New(id frame.ArmID, policy HomePolicy) *StateMachine {
	if policy == "" {
		policy = HomeAlways
	}
	return &StateMachine{
		state: State{
			Arm:  id,
			Mode: frame.PositionControl,
		},
		policy: policy,
	}
}

// Snapshot returns a consistent copy of the arm state.
func (m *StateMachine) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// EnterGravityCompensation transitions position control to gravity
// compensation with the given initial torque scale. Fails with
// ErrInvalidParameter if the scale is outside [0, 1] and with
// ErrInvalidState if the arm is already in gravity compensation. State is
// unchanged on failure.
func (m *StateMachine) EnterGravityCompensation(initialTorqueScale float64) error {
	if initialTorqueScale < 0 || initialTorqueScale > 1 {
		return fmt.Errorf("%w: torque scale %v", ErrInvalidParameter, initialTorqueScale)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Mode != frame.PositionControl {
		return fmt.Errorf("%w: already in %s", ErrInvalidState, m.state.Mode)
	}
	m.state.Mode = frame.GravityCompensation
	m.state.TorqueScale = initialTorqueScale
	return nil
}

// SetTorqueScale updates the torque scale. Valid only in gravity
// compensation; values are never clamped.
func (m *StateMachine) SetTorqueScale(value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("%w: torque scale %v", ErrInvalidParameter, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Mode != frame.GravityCompensation {
		return fmt.Errorf("%w: torque scale requires gravity compensation", ErrInvalidState)
	}
	m.state.TorqueScale = value
	return nil
}

// ReturnToPositionControl transitions back to position control. The torque
// scale keeps its last committed value. No-op if already in position
// control.
func (m *StateMachine) ReturnToPositionControl() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Mode = frame.PositionControl
}

// GoHome issues a one-shot return-to-home command through send, the
// external motion-control collaborator. It does not change the control
// mode. Under the HomePositionOnly policy it fails with ErrInvalidState
// while the arm is in gravity compensation.
func (m *StateMachine) GoHome(send func(frame.ArmID) error) error {
	m.mu.RLock()
	mode := m.state.Mode
	id := m.state.Arm
	m.mu.RUnlock()

	if m.policy == HomePositionOnly && mode != frame.PositionControl {
		return fmt.Errorf("%w: go home rejected in %s", ErrInvalidState, mode)
	}
	if err := send(id); err != nil {
		return fmt.Errorf("go home %s: %w", id, err)
	}
	return nil
}
