package cycle

import (
	"context"
	"fmt"

	"github.com/gwillem/thermocycle/pkg/robot"
)

// Move commands the arm to target and returns once the arrival is confirmed.
//
// After the first command it waits SettleDelay, then verifies. Every failed
// verification re-sends the same command and verifies again, without backoff
// and, unless MaxAttempts is set, without limit: the operator is alerted on
// every AlertEvery-th failure and is expected to intervene at the instrument.
func (c *Controller) Move(ctx context.Context, target robot.Pose, speed int, mode robot.Mode) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.driver.SendCoords(ctx, target, speed, mode); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("Send coords failed", "target", target, "attempt", attempt, "error", err)
		}

		if attempt == 1 {
			if err := c.Wait(ctx, c.motion.SettleDelay); err != nil {
				return err
			}
		}

		alert := (attempt-1)%c.motion.AlertEvery == 0
		if c.verify(ctx, target, alert).OK() {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if c.motion.MaxAttempts > 0 && attempt >= c.motion.MaxAttempts {
			return fmt.Errorf("%w: %s after %d attempts", ErrRetryLimit, target, attempt)
		}
		c.log.Warn("Retrying move", "target", target, "attempt", attempt+1)
	}
}

// moveTo is Move at the run speed with linear interpolation.
func (c *Controller) moveTo(ctx context.Context, target robot.Pose) error {
	return c.Move(ctx, target, c.run.Speed, robot.ModeLinear)
}
