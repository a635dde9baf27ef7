package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Kind discriminates master-to-slave messages on the wire.
type Kind string

const (
	KindCommand Kind = "command"
	KindHome    Kind = "home"
)

// Message is the outbound wire envelope. Exactly one payload field is set,
// matching Kind.
type Message struct {
	Kind    Kind          `cbor:"kind"`
	Command *CommandFrame `cbor:"command,omitempty"`
	Home    *HomeRequest  `cbor:"home,omitempty"`
}

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding. Same logical frame always produces
// identical bytes.
var encMode cbor.EncMode

// decMode rejects unknown struct fields so corrupted or mismatched frames
// are observable instead of silently ignored.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("frame: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("frame: CBOR decoder initialization failed: " + err.Error())
	}
}

// DecodeReason classifies a decode failure.
type DecodeReason string

const (
	// Truncated covers short, empty, or syntactically malformed input.
	Truncated DecodeReason = "truncated"
	// UnknownField means the frame carried a field this codec does not know.
	UnknownField DecodeReason = "unknown_field"
	// OutOfRange means the frame decoded but a value violates its domain,
	// e.g. a torque scale outside [0, 1]. Never clamped.
	OutOfRange DecodeReason = "out_of_range"
)

// DecodeError reports why an inbound frame was rejected.
type DecodeError struct {
	Reason DecodeReason
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode frame (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode frame (%s)", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeCommand serializes the commanded state of both arms. The encoding
// is deterministic: identical input yields identical bytes.
func EncodeCommand(cmd CommandFrame) ([]byte, error) {
	data, err := encMode.Marshal(Message{Kind: KindCommand, Command: &cmd})
	if err != nil {
		return nil, fmt.Errorf("encode command frame: %w", err)
	}
	return data, nil
}

// EncodeHome serializes a one-shot return-to-home request.
func EncodeHome(req HomeRequest) ([]byte, error) {
	data, err := encMode.Marshal(Message{Kind: KindHome, Home: &req})
	if err != nil {
		return nil, fmt.Errorf("encode home request: %w", err)
	}
	return data, nil
}

// EncodeTelemetry serializes a telemetry frame. Used by local telemetry
// sources and by test doubles standing in for the slave.
func EncodeTelemetry(f TelemetryFrame) ([]byte, error) {
	data, err := encMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode telemetry frame: %w", err)
	}
	return data, nil
}

// DecodeMessage parses an outbound envelope. The local bus loop uses it to
// interpret commands the way the remote slave would.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if len(data) == 0 {
		return Message{}, &DecodeError{Reason: Truncated, Err: io.ErrUnexpectedEOF}
	}
	if err := decMode.Unmarshal(data, &m); err != nil {
		return Message{}, &DecodeError{Reason: classify(err), Err: err}
	}
	switch m.Kind {
	case KindCommand:
		if m.Command == nil {
			return Message{}, &DecodeError{Reason: OutOfRange, Err: fmt.Errorf("command envelope without payload")}
		}
	case KindHome:
		if m.Home == nil {
			return Message{}, &DecodeError{Reason: OutOfRange, Err: fmt.Errorf("home envelope without payload")}
		}
	default:
		return Message{}, &DecodeError{Reason: OutOfRange, Err: fmt.Errorf("unknown message kind %q", m.Kind)}
	}
	return m, nil
}

// DecodeTelemetry parses and validates an inbound telemetry frame. All
// failures are *DecodeError; callers drop the frame and keep the stream up.
func DecodeTelemetry(data []byte) (TelemetryFrame, error) {
	var f TelemetryFrame
	if len(data) == 0 {
		return TelemetryFrame{}, &DecodeError{Reason: Truncated, Err: io.ErrUnexpectedEOF}
	}
	if err := decMode.Unmarshal(data, &f); err != nil {
		return TelemetryFrame{}, &DecodeError{Reason: classify(err), Err: err}
	}
	if err := f.validate(); err != nil {
		return TelemetryFrame{}, &DecodeError{Reason: OutOfRange, Err: err}
	}
	return f, nil
}

func classify(err error) DecodeReason {
	var unknown *cbor.UnknownFieldError
	if errors.As(err, &unknown) {
		return UnknownField
	}
	var typeErr *cbor.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return OutOfRange
	}
	// Everything else (EOF, unexpected EOF, malformed CBOR) is treated as
	// a truncated or corrupt wire read.
	return Truncated
}

func (f TelemetryFrame) validate() error {
	if !f.Arm.Valid() {
		return fmt.Errorf("unknown arm %q", f.Arm)
	}
	if !f.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", f.Mode)
	}
	if f.TorqueScale < 0 || f.TorqueScale > 1 {
		return fmt.Errorf("torque scale %v outside [0, 1]", f.TorqueScale)
	}
	if f.Timestamp < 0 {
		return fmt.Errorf("negative timestamp %d", f.Timestamp)
	}
	return nil
}
