// Package frame defines the wire-level frame types exchanged between the
// master device and the slave robot, plus their codec.
package frame

import "time"

// ArmID identifies one of the two master arms.
type ArmID string

const (
	Left  ArmID = "left"
	Right ArmID = "right"
)

// Valid reports whether the arm ID is one of the known arms.
func (a ArmID) Valid() bool {
	return a == Left || a == Right
}

// Mode is the control mode of an arm.
type Mode string

const (
	PositionControl     Mode = "position_control"
	GravityCompensation Mode = "gravity_compensation"
)

// Valid reports whether the mode is one of the known control modes.
func (m Mode) Valid() bool {
	return m == PositionControl || m == GravityCompensation
}

// ArmCommand is the commanded state for a single arm inside a CommandFrame.
type ArmCommand struct {
	Arm         ArmID   `cbor:"arm"`
	Mode        Mode    `cbor:"mode"`
	TorqueScale float64 `cbor:"torque_scale"`
}

// CommandFrame carries the commanded state of both arms. It is sent on
// every tick of the streaming loop. Command payloads carry no timestamps,
// so identical arm state always encodes to identical bytes.
type CommandFrame struct {
	Left  ArmCommand `cbor:"left"`
	Right ArmCommand `cbor:"right"`
}

// For selects the command for one arm. ok is false for an unknown arm ID.
func (c CommandFrame) For(id ArmID) (ArmCommand, bool) {
	switch id {
	case Left:
		return c.Left, true
	case Right:
		return c.Right, true
	}
	return ArmCommand{}, false
}

// HomeRequest is a one-shot return-to-home command for a single arm.
type HomeRequest struct {
	Arm ArmID `cbor:"arm"`
}

// TelemetryFrame is one encoder sample for one arm, produced by the remote
// device (or the local servo bus). Immutable once constructed; Clone before
// storing if the joint slice may be reused by the producer.
type TelemetryFrame struct {
	// Timestamp is unix nanoseconds at capture time.
	Timestamp   int64     `cbor:"timestamp"`
	Arm         ArmID     `cbor:"arm"`
	Joints      []float64 `cbor:"joints"`
	Mode        Mode      `cbor:"mode"`
	TorqueScale float64   `cbor:"torque_scale"`
}

// Time returns the capture timestamp as a time.Time.
func (f TelemetryFrame) Time() time.Time {
	return time.Unix(0, f.Timestamp)
}

// Clone returns a deep copy of the frame with its own joint slice.
func (f TelemetryFrame) Clone() TelemetryFrame {
	out := f
	if f.Joints != nil {
		out.Joints = make([]float64, len(f.Joints))
		copy(out.Joints, f.Joints)
	}
	return out
}
