package cycle

import (
	"context"

	"github.com/gwillem/thermocycle/pkg/robot"
)

// safePoint is a waypoint the arm may retreat to after a stop.
type safePoint struct {
	name string
	pose robot.Pose
}

// safePoints lists the retreat candidates in tie-break order.
func (c *Controller) safePoints() []safePoint {
	return []safePoint{
		{robot.WaypointAboveCold, c.wp.AboveCold},
		{robot.WaypointAboveHot, c.wp.AboveHot},
		{robot.WaypointRest, c.wp.Rest},
	}
}

// nearestSafePoint returns the candidate closest to current. On a tie the
// first listed candidate wins.
func (c *Controller) nearestSafePoint(current robot.Pose) safePoint {
	points := c.safePoints()
	best := points[0]
	bestDist := Distance(current, best.pose)
	for _, p := range points[1:] {
		if d := Distance(current, p.pose); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

// ManualStop returns the arm to rest after an operator stop. It reads the
// current position, retreats to the nearest of above-cold, above-hot and
// rest, goes through mid-transit unless it is already at rest, and releases
// the brakes.
//
// If no position can be read the arm is not moved at all and
// ErrPositionUnknown is returned. ctx must not be the cancelled stop context.
func (c *Controller) ManualStop(ctx context.Context) error {
	c.log.Info("Manually Stopped, Returning to Rest Position (stop again to abort)", "cycle", c.Cycle())

	current, ok := c.readPosition(ctx)
	if !ok {
		c.log.Error("Timeout, cannot detect current position", "error_info", c.errorInfo(ctx))
		c.alert(ctx, "cannot detect arm position after stop")
		return ErrPositionUnknown
	}

	landing := c.nearestSafePoint(current)
	c.log.Info("Currently at", "position", current)
	c.log.Info("Moving to", "waypoint", landing.name, "position", landing.pose)

	if err := c.moveTo(ctx, landing.pose); err != nil {
		return err
	}
	if landing.name != robot.WaypointRest {
		if err := c.moveTo(ctx, c.wp.Mid); err != nil {
			return err
		}
	}

	c.log.Info("Moving to rest position")
	if err := c.moveTo(ctx, c.wp.Rest); err != nil {
		return err
	}

	c.releaseBrakes(ctx)
	return nil
}
