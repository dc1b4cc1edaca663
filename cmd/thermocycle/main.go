package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/thermocycle/pkg/cycle"
	"github.com/gwillem/thermocycle/pkg/robot"
)

type Options struct {
	Config string `short:"c" long:"config" default:"thermocycle.yaml" description:"Configuration file"`

	Run   RunCommand   `command:"run" description:"Run the thermocycling experiment"`
	Setup SetupCommand `command:"setup" description:"Select the arm and enter the experiment parameters"`
	Teach TeachCommand `command:"teach" description:"Record waypoints by moving the arm by hand"`
	Info  InfoCommand  `command:"info" description:"Show arm position, error state and water temperature"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitStopped = 2
)

func main() {
	parser.LongDescription = "thermocycle - Robotic arm controller for cryogenic / water bath cycling"

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(exitOK)
		}
		if errors.Is(err, cycle.ErrStopped) {
			os.Exit(exitStopped)
		}
		os.Exit(exitError)
	}
}

// loadConfig reads the file named by --config.
func loadConfig() (*robot.Config, error) {
	if !robot.ConfigExists(opts.Config) {
		return nil, fmt.Errorf("no configuration found at %s, run 'thermocycle setup' first", opts.Config)
	}
	return robot.LoadConfigFrom(opts.Config)
}
