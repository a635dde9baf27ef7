package device

import (
	"encoding/json"
	"fmt"
	"os"
)

// JointCalibration holds calibration data for a single joint's servo.
type JointCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// Calibration holds calibration data for all joints of one arm, keyed by
// joint name.
type Calibration map[JointName]JointCalibration

// LoadCalibration loads one arm's calibration from a JSON file keyed by
// joint name. The arm layout is fixed, so unknown joint names and empty
// ranges are rejected rather than carried along.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var raw map[string]JointCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", path, err)
	}

	known := make(map[JointName]bool, len(ArmJoints()))
	for _, name := range ArmJoints() {
		known[name] = true
	}

	cal := make(Calibration, len(raw))
	for name, jc := range raw {
		jn := JointName(name)
		if !known[jn] {
			return nil, fmt.Errorf("calibration %s: unknown joint %q", path, name)
		}
		if jc.RangeMax <= jc.RangeMin {
			return nil, fmt.Errorf("calibration %s: joint %q has empty range [%d, %d]",
				path, name, jc.RangeMin, jc.RangeMax)
		}
		cal[jn] = jc
	}

	return cal, nil
}

// Degrees converts a raw servo position to joint degrees in [-180, 180].
func (c JointCalibration) Degrees(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	return (float64(raw-c.RangeMin)/rangeSize)*360 - 180
}

// Raw converts joint degrees [-180, 180] to a raw servo position.
func (c JointCalibration) Raw(degrees float64) int {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int((degrees+180)/360*rangeSize) + c.RangeMin
}

// ServoIDs returns the servo IDs for all calibrated joints in joint order.
func (c Calibration) ServoIDs() []int {
	ids := make([]int, 0, len(c))
	for _, name := range ArmJoints() {
		if jc, ok := c[name]; ok {
			ids = append(ids, jc.ID)
		}
	}
	return ids
}

// ByID returns the joint name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (JointName, JointCalibration, bool) {
	for name, jc := range c {
		if jc.ID == id {
			return name, jc, true
		}
	}
	return "", JointCalibration{}, false
}

// DefaultCalibration builds a full-range calibration for an arm whose
// servos have not been individually calibrated. Raw range covers the full
// 12-bit feetech position space.
func DefaultCalibration(base int) Calibration {
	cal := make(Calibration, len(ArmJoints()))
	for i, name := range ArmJoints() {
		cal[name] = JointCalibration{
			ID:       base + i,
			RangeMin: 0,
			RangeMax: 4095,
		}
	}
	return cal
}
