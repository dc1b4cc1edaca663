package robot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// FeetechArm drives an SO-101 arm over a Feetech STS servo bus. It works in
// joint space: a Pose holds the six normalized motor positions in AllMotors
// order, so waypoints are recorded with the teach command rather than as
// Cartesian coordinates.
type FeetechArm struct {
	mu          sync.Mutex
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
	enabled     bool
}

var (
	_ Driver      = (*FeetechArm)(nil)
	_ AngleReader = (*FeetechArm)(nil)
)

// NewFeetechArm opens the servo bus on port and groups the calibrated motors.
func NewFeetechArm(port string, cal Calibration) (*FeetechArm, error) {
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	group := feetech.NewServoGroupByIDs(bus, cal.MotorIDs()...)

	return &FeetechArm{
		bus:         bus,
		group:       group,
		calibration: cal,
	}, nil
}

// Close closes the arm's bus connection.
func (a *FeetechArm) Close() error {
	return a.bus.Close()
}

// SendCoords writes the pose as goal positions. The STS bus has no Cartesian
// interpolation, so mode is ignored, and goal speed stays at the servo default.
func (a *FeetechArm) SendCoords(ctx context.Context, pose Pose, speed int, mode Mode) error {
	return a.SendAngles(ctx, pose, speed)
}

// SendAngles writes the pose as goal positions, enabling torque first if the
// servos were released.
func (a *FeetechArm) SendAngles(ctx context.Context, angles Pose, speed int) error {
	if !angles.Valid() {
		return fmt.Errorf("send angles: want %d components, got %d", PoseLen, len(angles))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled {
		if err := a.group.EnableAll(ctx); err != nil {
			return fmt.Errorf("enable torque: %w", err)
		}
		a.enabled = true
	}

	raw := make(feetech.PositionMap, PoseLen)
	for name, norm := range PositionsFromPose(angles) {
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		raw[cal.ID] = cal.Denormalize(norm)
	}

	if err := a.group.SetPositions(ctx, raw); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

// Coords reads the normalized positions of all motors.
func (a *FeetechArm) Coords(ctx context.Context) (Pose, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions, err := a.readPositions(ctx)
	if err != nil {
		return nil, err
	}
	return PoseFromPositions(positions), nil
}

// Angles is the same reading as Coords: the arm already works in joint space.
func (a *FeetechArm) Angles(ctx context.Context) (Pose, error) {
	return a.Coords(ctx)
}

// ErrorInfo reports how many motors answer a position read. The STS bus
// exposes no single error register for the whole arm.
func (a *FeetechArm) ErrorInfo(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions, err := a.readPositions(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%d motors responding", len(positions), len(a.calibration)), nil
}

// ReleaseAllServos disables torque on all servos.
func (a *FeetechArm) ReleaseAllServos(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.group.DisableAll(ctx); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	a.enabled = false
	return nil
}

func (a *FeetechArm) readPositions(ctx context.Context) (map[MotorName]float64, error) {
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	positions := make(map[MotorName]float64, len(rawPositions))
	for id, raw := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[name] = cal.Normalize(raw)
	}
	return positions, nil
}
