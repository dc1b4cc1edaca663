package robot

// MotorName identifies a servo on a Feetech (SO-101) arm.
type MotorName string

// Motor names for the SO-101 arm.
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// AllMotors returns all motor names in order (matching servo IDs 1-6).
// This is also the component order of a joint-space Pose.
func AllMotors() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// PoseFromPositions orders normalized motor positions into a Pose. Motors
// missing from positions end the pose early, so a partial read yields an
// invalid pose rather than a zero-filled one.
func PoseFromPositions(positions map[MotorName]float64) Pose {
	pose := make(Pose, 0, PoseLen)
	for _, name := range AllMotors() {
		v, ok := positions[name]
		if !ok {
			break
		}
		pose = append(pose, v)
	}
	return pose
}

// PositionsFromPose maps the components of a joint-space Pose onto motor names.
func PositionsFromPose(pose Pose) map[MotorName]float64 {
	motors := AllMotors()
	positions := make(map[MotorName]float64, len(motors))
	for i, name := range motors {
		if i >= len(pose) {
			break
		}
		positions[name] = pose[i]
	}
	return positions
}
