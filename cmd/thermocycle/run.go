package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/thermocycle/pkg/cycle"
	"github.com/gwillem/thermocycle/pkg/logging"
	"github.com/gwillem/thermocycle/pkg/notify"
	"github.com/gwillem/thermocycle/pkg/robot"
	"github.com/gwillem/thermocycle/pkg/sensor"
)

type RunCommand struct {
	Experiment  string        `long:"experiment" description:"Experiment name"`
	Operator    string        `long:"operator" description:"Person responsible"`
	Cycles      int           `short:"n" long:"cycles" description:"Number of cycles"`
	ColdBath    time.Duration `long:"cold" description:"Time in the cryogenic bath (e.g. 60s)"`
	HotBath     time.Duration `long:"hot" description:"Time in the water bath (e.g. 3m)"`
	Wait        time.Duration `long:"wait" description:"Pause between cycles (minimum 2s)"`
	RunNumber   int           `long:"run-number" description:"Run number for the log"`
	Speed       int           `long:"speed" description:"Arm speed 1-100"`
	MaxAttempts int           `long:"max-attempts" description:"Give up a move after this many attempts (0 retries forever)"`
	Simulate    bool          `long:"simulate" description:"Use the simulated arm"`
}

var stateStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))

var stateTitles = map[cycle.State]string{
	cycle.StateInit:          "Initializing",
	cycle.StateColdBath:      "Cold bath",
	cycle.StateHotBath:       "Water bath",
	cycle.StateWaiting:       "Waiting",
	cycle.StateCycleComplete: "Cycle complete",
	cycle.StateShuttingDown:  "Shutting down",
	cycle.StateManualStop:    "Manual stop",
	cycle.StateIdle:          "Idle",
}

// apply overrides the run settings given on the command line.
func (c *RunCommand) apply(cfg *robot.Config) {
	if c.Experiment != "" {
		cfg.Run.ExperimentName = c.Experiment
	}
	if c.Operator != "" {
		cfg.Run.Operator = c.Operator
	}
	if c.Cycles != 0 {
		cfg.Run.Cycles = c.Cycles
	}
	if c.ColdBath != 0 {
		cfg.Run.ColdBathTime = c.ColdBath
	}
	if c.HotBath != 0 {
		cfg.Run.HotBathTime = c.HotBath
	}
	if c.Wait != 0 {
		cfg.Run.WaitTime = c.Wait
	}
	if c.RunNumber != 0 {
		cfg.Run.RunNumber = c.RunNumber
	}
	if c.Speed != 0 {
		cfg.Run.Speed = c.Speed
	}
	if c.MaxAttempts != 0 {
		cfg.Motion.MaxAttempts = c.MaxAttempts
	}
	if c.Simulate {
		cfg.Arm.Kind = robot.KindSim
	}
}

// operatorStop returns a context cancelled by the first of sigs. The handler
// is removed as soon as that happens, so a second signal terminates the
// process even while the recovery moves are still running.
func operatorStop(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	defer logger.Close()
	if path := logger.Path(); path != "" {
		fmt.Println(dimStyle.Render("Logging to " + path))
	}

	driver, err := cfg.Arm.OpenDriver(cfg.Waypoints.Rest)
	if err != nil {
		return fmt.Errorf("connect arm: %w", err)
	}
	defer driver.Close()

	var thermo sensor.Thermometer
	if cfg.Sensor.Enabled {
		probe, err := sensor.Open(cfg.Sensor)
		if err != nil {
			logger.Warn("Temperature sensor unavailable", "err", err)
		} else {
			thermo = probe
		}
	}

	ctrl, err := cycle.New(cycle.Options{
		Driver:      driver,
		Run:         cfg.Run,
		Motion:      cfg.Motion,
		Waypoints:   cfg.Waypoints,
		Thermometer: thermo,
		Notifier:    notify.New(cfg.Notify, logger.Logger),
		Logger:      logger.Logger,
		OnState: func(s cycle.Status) {
			fmt.Println(stateStyle.Render(fmt.Sprintf("━━━ %s (cycle %d/%d) ━━━", stateTitles[s.State], s.Cycle, cfg.Run.Cycles)))
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := operatorStop(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Run(ctx); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Experiment complete."))
	return nil
}
