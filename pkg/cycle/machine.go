package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gwillem/thermocycle/pkg/robot"
)

// State is a phase of the experiment lifecycle.
type State string

const (
	StateInit          State = "init"
	StateColdBath      State = "cold_bath"
	StateHotBath       State = "hot_bath"
	StateWaiting       State = "waiting"
	StateCycleComplete State = "cycle_complete"
	StateShuttingDown  State = "shutting_down"
	StateManualStop    State = "manual_stop"
	StateIdle          State = "idle"
)

// cycleTiming collects the measured phases of one cycle.
type cycleTiming struct {
	start time.Time
	cold  time.Duration
	hot   time.Duration
}

// Run executes the experiment: init, Cycles repetitions of cold bath, hot
// bath and wait, then shutdown. It always ends in StateIdle.
//
// Cancelling ctx is the operator stop. It is observed at every poll increment;
// the machine then hands the arm to ManualStop and Run returns ErrStopped.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("already running")
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.logStart()

	var timing cycleTiming
	state := StateInit
	for {
		c.setState(state)

		var (
			next State
			err  error
		)
		switch state {
		case StateInit:
			err = c.initExperiment(ctx)
			next = c.nextCycleState()

		case StateColdBath:
			timing = cycleTiming{start: c.clock.Now()}
			timing.cold, err = c.coldBath(ctx)
			next = StateHotBath

		case StateHotBath:
			timing.hot, err = c.hotBath(ctx)
			next = StateWaiting

		case StateWaiting:
			c.log.Info("Waiting", "duration", c.run.WaitTime)
			err = c.Wait(ctx, c.run.WaitTime)
			next = StateCycleComplete

		case StateCycleComplete:
			c.completeCycle(timing)
			next = c.nextCycleState()

		case StateShuttingDown:
			// A stop during shutdown changes nothing: the arm is already
			// heading for rest.
			err = c.shutdown(context.WithoutCancel(ctx))
			if err == nil {
				c.setState(StateIdle)
				return nil
			}

		case StateManualStop:
			err = c.ManualStop(context.WithoutCancel(ctx))
			c.setCycle(1)
			c.setState(StateIdle)
			return errors.Join(ErrStopped, err)
		}

		if err != nil {
			if ctx.Err() != nil && state != StateShuttingDown {
				c.log.Info("Stop requested", "state", state)
				state = StateManualStop
				continue
			}
			c.log.Error("Experiment aborted", "state", state, "error", err)
			c.setState(StateIdle)
			return fmt.Errorf("%s: %w", state, err)
		}
		state = next
	}
}

func (c *Controller) nextCycleState() State {
	if c.Cycle() <= c.run.Cycles {
		return StateColdBath
	}
	return StateShuttingDown
}

func (c *Controller) logStart() {
	c.log.Info("Starting Robot Actions")
	c.log.Info("Experiment Parameters",
		"experiment", c.run.ExperimentName,
		"operator", c.run.Operator,
		"hot_bath_time", c.run.HotBathTime,
		"cold_bath_time", c.run.ColdBathTime,
		"wait_time", c.run.WaitTime,
		"cycles", c.run.Cycles,
		"run_number", c.run.RunNumber,
		"speed", c.run.Speed,
	)
}

// initExperiment brings the arm to its ready position.
func (c *Controller) initExperiment(ctx context.Context) error {
	c.log.Info("Starting Experiment")
	if err := c.moveTo(ctx, c.wp.Mid); err != nil {
		return err
	}
	return c.moveTo(ctx, c.wp.Rest)
}

// coldBath dips the sample into liquid nitrogen and returns the measured
// time from the start of the insertion to the end of the hold.
func (c *Controller) coldBath(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.log.Info("Moving to Liquid Nitrogen", "cycle", c.Cycle())

	if len(c.wp.AboveColdAngles) > 0 {
		if err := c.driver.SendAngles(ctx, c.wp.AboveColdAngles, c.motion.ApproachSpeed); err != nil {
			c.log.Warn("Fast approach failed, continuing with verified move", "error", err)
		}
		if err := c.Wait(ctx, c.motion.ApproachSettle); err != nil {
			return 0, err
		}
	}
	if err := c.moveTo(ctx, c.wp.AboveCold); err != nil {
		return 0, err
	}

	c.log.Info("Moving inside LN2")
	start := c.clock.Now()
	if err := c.Move(ctx, c.wp.InsideCold, c.motion.InsertSpeed, robot.ModeLinear); err != nil {
		return 0, err
	}
	if err := c.Wait(ctx, hold(c.run.ColdBathTime)); err != nil {
		return 0, err
	}
	elapsed := c.clock.Now().Sub(start)

	c.log.Info("Outside LN2")
	if err := c.moveTo(ctx, c.wp.AboveCold); err != nil {
		return 0, err
	}
	return elapsed, nil
}

// hotBath moves the sample into the thermomixer and returns the measured time
// from the start of the insertion to the end of the hold.
func (c *Controller) hotBath(ctx context.Context) (time.Duration, error) {
	c.log.Info("Moving sample to Water Bath")
	if err := c.moveTo(ctx, c.wp.AboveHot); err != nil {
		return 0, err
	}
	c.logTemperature(ctx)

	c.log.Info("Moving Inside Water Bath")
	start := c.clock.Now()
	if err := c.moveTo(ctx, c.wp.InsideHot); err != nil {
		return 0, err
	}
	if err := c.Wait(ctx, hold(c.run.HotBathTime)); err != nil {
		return 0, err
	}
	elapsed := c.clock.Now().Sub(start)

	c.log.Info("Moving outside Water Bath")
	if err := c.moveTo(ctx, c.wp.AboveHot); err != nil {
		return 0, err
	}
	c.logTemperature(ctx)
	return elapsed, nil
}

func (c *Controller) completeCycle(t cycleTiming) {
	total := c.clock.Now().Sub(t.start)
	overhead := total - c.run.ColdBathTime - c.run.HotBathTime - c.run.WaitTime
	n := c.Cycle()

	c.log.Info(fmt.Sprintf("Cycle Completed: %d", n),
		"cycle", n,
		"ln2_time", t.cold,
		"water_bath_time", t.hot,
		"extra_cycle_time", overhead,
	)
	c.setCycle(n + 1)
}

// shutdown parks the arm at rest and releases the brakes.
func (c *Controller) shutdown(ctx context.Context) error {
	c.log.Info("Ending Experiment")
	if err := c.moveTo(ctx, c.wp.Mid); err != nil {
		return err
	}
	if err := c.moveTo(ctx, c.wp.Rest); err != nil {
		return err
	}
	c.releaseBrakes(ctx)
	c.log.Info("Completed and released motors")
	c.setCycle(1)
	return nil
}

// hold is the time the sample spends in a bath once the transfer moves are
// accounted for.
func hold(bath time.Duration) time.Duration {
	return max(bath-robot.TransferAllowance, 0)
}
