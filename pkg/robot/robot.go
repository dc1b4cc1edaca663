// Package robot provides the arm drivers and configuration for the thermocycler.
package robot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoReading is returned by Driver.Coords when the arm did not report a position.
var ErrNoReading = errors.New("no position reading")

// Pose is a 6-component arm position. For Cartesian drivers it holds x, y, z in
// millimetres followed by rx, ry, rz in degrees; for joint-space drivers it holds
// one value per joint.
type Pose []float64

// PoseLen is the number of components in a complete pose.
const PoseLen = 6

// Valid reports whether the pose has all six components.
func (p Pose) Valid() bool {
	return len(p) == PoseLen
}

// Clone returns a copy of the pose.
func (p Pose) Clone() Pose {
	if p == nil {
		return nil
	}
	out := make(Pose, len(p))
	copy(out, p)
	return out
}

func (p Pose) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%.1f", v)
	}
	sb.WriteByte(']')
	return sb.String()
}

// Mode selects how the driver interpolates a Cartesian move.
type Mode int

const (
	// ModeAngular lets each joint move independently to the target.
	ModeAngular Mode = 0
	// ModeLinear keeps the tool on a straight line to the target.
	ModeLinear Mode = 1
)

// Driver is the hardware boundary of the controller. Implementations serialize
// their own I/O; callers never have more than one command outstanding.
type Driver interface {
	// SendCoords commands a move to pose. It returns once the command is sent,
	// not when the arm arrives.
	SendCoords(ctx context.Context, pose Pose, speed int, mode Mode) error
	// SendAngles commands a joint-space move.
	SendAngles(ctx context.Context, angles Pose, speed int) error
	// Coords reads the current position. A short pose or ErrNoReading means
	// the arm has not produced a valid reading.
	Coords(ctx context.Context) (Pose, error)
	// ErrorInfo returns the driver's diagnostic status.
	ErrorInfo(ctx context.Context) (string, error)
	// ReleaseAllServos removes torque from every joint.
	ReleaseAllServos(ctx context.Context) error
	Close() error
}

// AngleReader is implemented by drivers that can report joint angles
// alongside their Cartesian position.
type AngleReader interface {
	Angles(ctx context.Context) (Pose, error)
}
