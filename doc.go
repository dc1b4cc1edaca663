// Package thermocycle drives a robotic arm through repeated freeze/thaw cycles.
//
// A sample is moved between a liquid nitrogen dewar, a heated thermomixer and a
// rest position for a configured number of cycles. Every move is verified
// against the arm's reported position and retried until it lands, and an
// operator stop (Ctrl+C) returns the arm to rest through the nearest safe
// waypoint before the brakes are released.
//
// # Installation
//
//	go install github.com/gwillem/thermocycle/cmd/thermocycle@latest
//
// # Usage
//
// First, run setup to pick the arm driver and serial port and to enter the
// experiment parameters:
//
//	thermocycle setup
//
// Record the waypoints by moving the arm by hand:
//
//	thermocycle teach
//
// Then start the experiment:
//
//	thermocycle run --cycles 10
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/thermocycle: CLI with run, setup, teach and info commands
//   - pkg/robot: Arm drivers (MyCobot, Feetech, simulated), calibration, configuration
//   - pkg/cycle: Verified moves, cycle state machine and manual-stop recovery
//   - pkg/sensor: 1-wire water temperature sensor
//   - pkg/notify: Operator alerts
//   - pkg/logging: Console and rotating file logging
package thermocycle
