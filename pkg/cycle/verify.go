package cycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gwillem/thermocycle/pkg/robot"
)

// Outcome is the result of comparing the arm's position with its target.
type Outcome int

const (
	Failed Outcome = iota
	Confirmed
	ConfirmedWithWarning
)

// OK reports whether the move counts as arrived.
func (o Outcome) OK() bool {
	return o == Confirmed || o == ConfirmedWithWarning
}

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case ConfirmedWithWarning:
		return "confirmed with warning"
	default:
		return "failed"
	}
}

// Classify maps a position error onto an outcome: up to near is Confirmed,
// up to far is ConfirmedWithWarning, anything beyond is Failed.
func Classify(distance, near, far float64) Outcome {
	switch {
	case distance <= near:
		return Confirmed
	case distance <= far:
		return ConfirmedWithWarning
	default:
		return Failed
	}
}

// Verify polls the arm until it reports a position or VerifyTimeout elapses,
// and classifies that position against expected. Failures are logged with the
// driver's error status and raise an operator alert.
func (c *Controller) Verify(ctx context.Context, expected robot.Pose) Outcome {
	return c.verify(ctx, expected, true)
}

// VerifyAt classifies a position that was already read.
func (c *Controller) VerifyAt(ctx context.Context, expected, current robot.Pose) Outcome {
	return c.check(ctx, expected, current, true)
}

func (c *Controller) verify(ctx context.Context, expected robot.Pose, alert bool) Outcome {
	current, ok := c.readPosition(ctx)
	if !ok {
		if ctx.Err() != nil {
			return Failed
		}
		c.log.Error("Timeout, cannot detect current position",
			"expected", expected, "error_info", c.errorInfo(ctx))
		if alert {
			c.alert(ctx, "cannot detect arm position")
		}
		return Failed
	}
	return c.check(ctx, expected, current, alert)
}

func (c *Controller) check(ctx context.Context, expected, current robot.Pose, alert bool) Outcome {
	distance := Distance(expected, current)
	outcome := Classify(distance, c.motion.NearThreshold, c.motion.FarThreshold)
	msg := fmt.Sprintf("Distance Error is %.2f", distance)
	attrs := []any{"outcome", outcome, "expected", expected, "current", current}

	switch outcome {
	case Confirmed:
		c.log.Info(msg, attrs...)
	case ConfirmedWithWarning:
		c.log.Warn(msg, attrs...)
	default:
		c.log.Error(msg, append(attrs, "error_info", c.errorInfo(ctx))...)
		if alert {
			c.alert(ctx, msg)
		}
	}
	return outcome
}

// readPosition polls the driver every PollInterval until it returns a full
// pose. It gives up after VerifyTimeout or when ctx is cancelled.
func (c *Controller) readPosition(ctx context.Context) (robot.Pose, bool) {
	start := c.clock.Now()
	for {
		if ctx.Err() != nil {
			return nil, false
		}
		pose, err := c.driver.Coords(ctx)
		if err == nil && pose.Valid() {
			return pose, true
		}
		if err != nil {
			c.log.Debug("No position reading", slog.Any("error", err))
		}
		if c.clock.Now().Sub(start) >= c.motion.VerifyTimeout {
			return nil, false
		}
		c.clock.Sleep(c.motion.PollInterval)
	}
}
