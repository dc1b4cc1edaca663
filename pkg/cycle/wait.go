package cycle

import (
	"context"
	"time"
)

// Wait blocks for at least d, sleeping in WaitInterval increments. The stop
// signal is checked once per increment; a cancelled ctx is the only way Wait
// returns before d has elapsed.
func (c *Controller) Wait(ctx context.Context, d time.Duration) error {
	start := c.clock.Now()
	for c.clock.Now().Sub(start) < d {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.clock.Sleep(min(c.motion.WaitInterval, d-c.clock.Now().Sub(start)))
	}
	return nil
}
