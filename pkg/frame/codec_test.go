package frame

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestTelemetryRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame TelemetryFrame
	}{
		{
			"gravity compensation", TelemetryFrame{
				Timestamp:   time.Date(2026, 8, 24, 10, 0, 0, 123456789, time.UTC).UnixNano(),
				Arm:         Left,
				Joints:      []float64{1.5, -20.25, 90, 0, -179.5, 33.3, 12},
				Mode:        GravityCompensation,
				TorqueScale: 0.3,
			},
		},
		{
			"position control no joints", TelemetryFrame{
				Timestamp: 1,
				Arm:       Right,
				Mode:      PositionControl,
			},
		},
		{
			"torque bounds", TelemetryFrame{
				Timestamp:   42,
				Arm:         Right,
				Joints:      []float64{0},
				Mode:        GravityCompensation,
				TorqueScale: 1.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeTelemetry(tt.frame)
			if err != nil {
				t.Fatalf("EncodeTelemetry: %v", err)
			}
			got, err := DecodeTelemetry(data)
			if err != nil {
				t.Fatalf("DecodeTelemetry: %v", err)
			}
			if got.Timestamp != tt.frame.Timestamp || got.Arm != tt.frame.Arm ||
				got.Mode != tt.frame.Mode || got.TorqueScale != tt.frame.TorqueScale {
				t.Errorf("round trip = %+v, want %+v", got, tt.frame)
			}
			if len(got.Joints) != len(tt.frame.Joints) {
				t.Fatalf("joints = %v, want %v", got.Joints, tt.frame.Joints)
			}
			for i := range got.Joints {
				if got.Joints[i] != tt.frame.Joints[i] {
					t.Errorf("joint %d = %v, want %v", i, got.Joints[i], tt.frame.Joints[i])
				}
			}
		})
	}
}

func TestEncodeCommandDeterministic(t *testing.T) {
	cmd := CommandFrame{
		Left:  ArmCommand{Arm: Left, Mode: GravityCompensation, TorqueScale: 0.3},
		Right: ArmCommand{Arm: Right, Mode: PositionControl, TorqueScale: 0.0},
	}

	first, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	second, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical command frames encoded to different bytes")
	}

	cmd.Left.TorqueScale = 0.31
	changed, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	if bytes.Equal(first, changed) {
		t.Error("different command frames encoded to identical bytes")
	}
}

func TestDecodeTruncated(t *testing.T) {
	data, err := EncodeTelemetry(TelemetryFrame{
		Timestamp: 100,
		Arm:       Left,
		Joints:    []float64{1, 2, 3},
		Mode:      PositionControl,
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, cut := range []int{0, 1, len(data) / 2, len(data) - 1} {
		_, err := DecodeTelemetry(data[:cut])
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("DecodeTelemetry(%d bytes) = %v, want *DecodeError", cut, err)
		}
		if decErr.Reason != Truncated {
			t.Errorf("reason for %d bytes = %s, want truncated", cut, decErr.Reason)
		}
	}
}

func TestDecodeUnknownField(t *testing.T) {
	payload, err := encMode.Marshal(map[string]any{
		"timestamp":    int64(100),
		"arm":          "left",
		"joints":       []float64{1, 2},
		"mode":         "position_control",
		"torque_scale": 0.0,
		"extra_field":  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecodeTelemetry(payload)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("DecodeTelemetry = %v, want *DecodeError", err)
	}
	if decErr.Reason != UnknownField {
		t.Errorf("reason = %s, want unknown_field", decErr.Reason)
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		frame map[string]any
	}{
		{"torque above one", map[string]any{
			"timestamp": int64(1), "arm": "left", "joints": []float64{0},
			"mode": "gravity_compensation", "torque_scale": 1.5,
		}},
		{"torque negative", map[string]any{
			"timestamp": int64(1), "arm": "left", "joints": []float64{0},
			"mode": "gravity_compensation", "torque_scale": -0.2,
		}},
		{"unknown arm", map[string]any{
			"timestamp": int64(1), "arm": "center", "joints": []float64{0},
			"mode": "position_control", "torque_scale": 0.0,
		}},
		{"unknown mode", map[string]any{
			"timestamp": int64(1), "arm": "left", "joints": []float64{0},
			"mode": "jazz_hands", "torque_scale": 0.0,
		}},
		{"negative timestamp", map[string]any{
			"timestamp": int64(-5), "arm": "left", "joints": []float64{0},
			"mode": "position_control", "torque_scale": 0.0,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := encMode.Marshal(tt.frame)
			if err != nil {
				t.Fatal(err)
			}
			_, err = DecodeTelemetry(payload)
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("DecodeTelemetry = %v, want *DecodeError", err)
			}
			if decErr.Reason != OutOfRange {
				t.Errorf("reason = %s, want out_of_range", decErr.Reason)
			}
		})
	}
}

func TestEncodeHome(t *testing.T) {
	data, err := EncodeHome(HomeRequest{Arm: Right})
	if err != nil {
		t.Fatalf("EncodeHome: %v", err)
	}

	var msg Message
	if err := decMode.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if msg.Kind != KindHome {
		t.Errorf("Kind = %s, want home", msg.Kind)
	}
	if msg.Home == nil || msg.Home.Arm != Right {
		t.Errorf("Home = %+v, want right arm", msg.Home)
	}
	if msg.Command != nil {
		t.Error("home envelope carries a command payload")
	}
}

func TestDecodeMessageRoundTrip(t *testing.T) {
	cmd := CommandFrame{
		Left:  ArmCommand{Arm: Left, Mode: GravityCompensation, TorqueScale: 0.25},
		Right: ArmCommand{Arm: Right, Mode: PositionControl},
	}
	data, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Kind != KindCommand {
		t.Errorf("Kind = %s, want command", msg.Kind)
	}
	if msg.Command == nil || *msg.Command != cmd {
		t.Errorf("Command = %+v, want %+v", msg.Command, cmd)
	}

	data, err = EncodeHome(HomeRequest{Arm: Left})
	if err != nil {
		t.Fatal(err)
	}
	msg, err = DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage(home): %v", err)
	}
	if msg.Kind != KindHome || msg.Home == nil || msg.Home.Arm != Left {
		t.Errorf("home envelope = %+v", msg)
	}
}

func TestDecodeMessageRejections(t *testing.T) {
	tests := []struct {
		name   string
		data   func(t *testing.T) []byte
		reason DecodeReason
	}{
		{
			"empty input",
			func(t *testing.T) []byte { return nil },
			Truncated,
		},
		{
			"unknown kind",
			func(t *testing.T) []byte {
				data, err := encMode.Marshal(map[string]any{"kind": "telemetry"})
				if err != nil {
					t.Fatal(err)
				}
				return data
			},
			OutOfRange,
		},
		{
			"command without payload",
			func(t *testing.T) []byte {
				data, err := encMode.Marshal(map[string]any{"kind": "command"})
				if err != nil {
					t.Fatal(err)
				}
				return data
			},
			OutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage(tt.data(t))
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("err = %v, want *DecodeError", err)
			}
			if decErr.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", decErr.Reason, tt.reason)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := TelemetryFrame{
		Timestamp: 1,
		Arm:       Left,
		Joints:    []float64{1, 2, 3},
		Mode:      PositionControl,
	}

	clone := orig.Clone()
	clone.Joints[0] = 99

	if orig.Joints[0] != 1 {
		t.Error("Clone shares the joint slice with the original")
	}
}
