package device

import (
	"context"
	"fmt"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/smartteach/masterlink/pkg/arm"
	"github.com/smartteach/masterlink/pkg/frame"
)

// Arm reads one master arm's joint encoders over the servo bus.
type Arm struct {
	id          frame.ArmID
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
}

// ArmConfig configures the bus connection for one arm.
type ArmConfig struct {
	ID              frame.ArmID
	Port            string
	CalibrationPath string
}

// NewArm opens the serial bus for one arm. Without a calibration file the
// full servo range maps to [-180, 180] degrees.
func NewArm(cfg ArmConfig) (*Arm, error) {
	if !cfg.ID.Valid() {
		return nil, fmt.Errorf("unknown arm %q", cfg.ID)
	}

	cal := DefaultCalibration(baseServoID(cfg.ID))
	if cfg.CalibrationPath != "" {
		loaded, err := LoadCalibration(cfg.CalibrationPath)
		if err != nil {
			return nil, fmt.Errorf("arm %s: %w", cfg.ID, err)
		}
		cal = loaded
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("arm %s: open bus: %w", cfg.ID, err)
	}

	group := feetech.NewServoGroupByIDs(bus, cal.ServoIDs()...)

	return &Arm{
		id:          cfg.ID,
		bus:         bus,
		group:       group,
		calibration: cal,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// ID returns which arm this is.
func (a *Arm) ID() frame.ArmID {
	return a.id
}

// Enable enables torque on all servos (position hold).
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos (passive / gravity mode).
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadJoints reads all joint positions in ArmJoints order, in degrees.
func (a *Arm) ReadJoints(ctx context.Context) ([]float64, error) {
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("arm %s: read positions: %w", a.id, err)
	}

	byName := make(map[JointName]float64, len(rawPositions))
	for id, raw := range rawPositions {
		name, jc, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		byName[name] = jc.Degrees(raw)
	}

	joints := make([]float64, 0, len(ArmJoints()))
	for _, name := range ArmJoints() {
		joints = append(joints, byName[name])
	}
	return joints, nil
}

// ReadFrame samples the encoders and stamps them with the arm's current
// control state, yielding the same telemetry frame shape the remote slave
// produces.
func (a *Arm) ReadFrame(ctx context.Context, state arm.State) (frame.TelemetryFrame, error) {
	joints, err := a.ReadJoints(ctx)
	if err != nil {
		return frame.TelemetryFrame{}, err
	}
	return frame.TelemetryFrame{
		Timestamp:   time.Now().UnixNano(),
		Arm:         a.id,
		Joints:      joints,
		Mode:        state.Mode,
		TorqueScale: state.TorqueScale,
	}, nil
}

// Device is the dual-arm master hardware.
type Device struct {
	Left  *Arm
	Right *Arm
}

// NewDevice opens both arms. Either port may be empty, leaving that arm
// nil; a single-arm bench setup is valid.
func NewDevice(left, right ArmConfig) (*Device, error) {
	d := &Device{}

	if left.Port != "" {
		left.ID = frame.Left
		a, err := NewArm(left)
		if err != nil {
			return nil, err
		}
		d.Left = a
	}
	if right.Port != "" {
		right.ID = frame.Right
		a, err := NewArm(right)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Right = a
	}
	if d.Left == nil && d.Right == nil {
		return nil, fmt.Errorf("no arm ports configured")
	}
	return d, nil
}

// Close closes both arms.
func (d *Device) Close() error {
	var firstErr error
	if d.Left != nil {
		if err := d.Left.Close(); err != nil {
			firstErr = err
		}
	}
	if d.Right != nil {
		if err := d.Right.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
