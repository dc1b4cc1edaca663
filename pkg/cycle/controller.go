// Package cycle runs the thermocycling experiment: verified arm moves, timed
// bath holds, the cycle state machine and the manual-stop recovery.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gwillem/thermocycle/pkg/notify"
	"github.com/gwillem/thermocycle/pkg/robot"
	"github.com/gwillem/thermocycle/pkg/sensor"
)

var (
	// ErrStopped is returned by Run after an operator stop was handled.
	ErrStopped = errors.New("experiment stopped manually")
	// ErrPositionUnknown means the arm did not report its position, so it was
	// left where it is.
	ErrPositionUnknown = errors.New("cannot detect current position")
	// ErrRetryLimit is returned by Move when MaxAttempts is exhausted.
	ErrRetryLimit = errors.New("move not confirmed")
)

// Status describes the controller at a state transition.
type Status struct {
	State State
	Cycle int
	Time  time.Time
}

// Options holds the collaborators and settings of a controller.
type Options struct {
	Driver    robot.Driver
	Run       robot.RunConfig
	Motion    robot.MotionConfig
	Waypoints robot.Waypoints

	// Optional collaborators.
	Thermometer sensor.Thermometer
	Notifier    notify.Notifier
	Logger      *slog.Logger
	Clock       Clock
	// OnState is called synchronously on every state transition.
	OnState func(Status)
}

// Controller owns the arm for the duration of a run. All of its methods are
// meant to be called from a single goroutine; Run refuses to start twice.
type Controller struct {
	driver   robot.Driver
	thermo   sensor.Thermometer
	notifier notify.Notifier
	log      *slog.Logger
	clock    Clock
	onState  func(Status)

	run    robot.RunConfig
	motion robot.MotionConfig
	wp     robot.Waypoints

	mu      sync.Mutex
	running bool
	state   State
	cycle   int
}

// New creates a controller. The run configuration and waypoints are
// validated here and never change afterwards.
func New(opts Options) (*Controller, error) {
	if opts.Driver == nil {
		return nil, errors.New("no arm driver")
	}
	if err := opts.Run.Validate(); err != nil {
		return nil, fmt.Errorf("run config: %w", err)
	}
	if err := opts.Waypoints.Validate(); err != nil {
		return nil, fmt.Errorf("waypoints: %w", err)
	}

	c := &Controller{
		driver:   opts.Driver,
		thermo:   opts.Thermometer,
		notifier: opts.Notifier,
		log:      opts.Logger,
		clock:    opts.Clock,
		onState:  opts.OnState,
		run:      opts.Run,
		motion:   opts.Motion.WithDefaults(),
		wp:       opts.Waypoints,
		state:    StateIdle,
		cycle:    1,
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.clock == nil {
		c.clock = SystemClock()
	}
	if c.notifier == nil {
		c.notifier = notify.Multi{}
	}
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cycle returns the cycle counter.
func (c *Controller) Cycle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	status := Status{State: s, Cycle: c.cycle, Time: c.clock.Now()}
	c.mu.Unlock()

	c.log.Debug("State transition", "state", s, "cycle", status.Cycle)
	if c.onState != nil {
		c.onState(status)
	}
}

func (c *Controller) setCycle(n int) {
	c.mu.Lock()
	c.cycle = n
	c.mu.Unlock()
}

// alert raises an operator notification. It never blocks on the alert itself.
func (c *Controller) alert(ctx context.Context, message string) {
	c.notifier.Notify(ctx, message)
}

// errorInfo fetches the driver's diagnostic status for an error log line.
func (c *Controller) errorInfo(ctx context.Context) string {
	info, err := c.driver.ErrorInfo(ctx)
	if err != nil {
		return fmt.Sprintf("unavailable: %v", err)
	}
	return info
}

func (c *Controller) logTemperature(ctx context.Context) {
	if c.thermo == nil {
		return
	}
	temp, err := c.thermo.Temperature(ctx)
	if err != nil {
		c.log.Warn("Water temperature unavailable", "error", err)
		return
	}
	c.log.Info(fmt.Sprintf("Water Temperature: %.2f C", temp), "celsius", temp)
}

// releaseBrakes releases all servos twice with a short pause in between.
func (c *Controller) releaseBrakes(ctx context.Context) {
	for i := range 2 {
		if i > 0 {
			c.clock.Sleep(c.motion.BrakePause)
		}
		if err := c.driver.ReleaseAllServos(ctx); err != nil {
			c.log.Error("Release servos failed", "error", err)
		}
	}
	c.log.Info("Released all servos")
}
