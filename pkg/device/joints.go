// Package device reads the master device's own joint encoders over the
// feetech servo bus. In local/USB mode it stands in for remote telemetry,
// feeding the same recording and display pipeline.
package device

import "github.com/smartteach/masterlink/pkg/frame"

// JointName identifies a joint within one arm.
type JointName string

// Joint names for one 7-DOF master arm, in servo-ID order.
const (
	BaseYaw       JointName = "base_yaw"
	ShoulderPitch JointName = "shoulder_pitch"
	ElbowPitch    JointName = "elbow_pitch"
	ForearmRoll   JointName = "forearm_roll"
	WristPitch    JointName = "wrist_pitch"
	WristRoll     JointName = "wrist_roll"
	Gripper       JointName = "gripper"
)

// ArmJoints returns the joint names of one arm in order. Frame joint
// values follow this order.
func ArmJoints() []JointName {
	return []JointName{
		BaseYaw,
		ShoulderPitch,
		ElbowPitch,
		ForearmRoll,
		WristPitch,
		WristRoll,
		Gripper,
	}
}

// baseServoID returns the first servo ID for an arm. Left arm servos are
// 1-7, right arm servos are 11-17.
func baseServoID(id frame.ArmID) int {
	if id == frame.Right {
		return 11
	}
	return 1
}
