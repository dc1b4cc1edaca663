package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/thermocycle/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Thermocycle Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if robot.ConfigExists(opts.Config) {
		loaded, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return err
		}
		cfg = loaded
		fmt.Println(dimStyle.Render("Editing " + opts.Config))
		fmt.Println()
	}

	// Step 1: arm connection
	if err := selectArm(&cfg.Arm); err != nil {
		return err
	}

	if cfg.Arm.Kind == robot.KindFeetech {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Calibrating Arm ━━━"))
		fmt.Println()
		cal, err := calibrateArm(cfg.Arm.Port)
		if err != nil {
			return err
		}
		cfg.Arm.Calibration = cal
		cfg.Arm.CalibrationFile = ""
	}

	// Step 2: experiment parameters
	fmt.Println()
	if err := editRun(cfg); err != nil {
		return err
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	if err := cfg.Waypoints.Validate(); err != nil || isZero(cfg.Waypoints.Rest) {
		fmt.Println("Record the waypoints with: " + headerStyle.Render("thermocycle teach"))
	}
	fmt.Println("Start the experiment with: " + headerStyle.Render("thermocycle run"))
	return nil
}

func isZero(p robot.Pose) bool {
	for _, v := range p {
		if v != 0 {
			return false
		}
	}
	return true
}

func selectArm(arm *robot.ArmConfig) error {
	kind := arm.Kind
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which arm drives the sample?").
				Options(
					huh.NewOption("myCobot 280 (serial, Cartesian)", robot.KindMyCobot),
					huh.NewOption("SO-101 (Feetech bus, joint space)", robot.KindFeetech),
					huh.NewOption("Simulated arm (dry run)", robot.KindSim),
				).
				Value(&kind),
		),
	).Run()
	if err != nil {
		return err
	}
	arm.Kind = kind

	switch kind {
	case robot.KindSim:
		return nil
	case robot.KindMyCobot:
		if arm.BaudRate == 0 {
			arm.BaudRate = robot.DefaultMyCobotBaud
		}
	}

	ports := listPorts()
	if len(ports) == 0 {
		return errors.New("no serial ports found, make sure the arm is connected and powered on")
	}

	port := arm.Port
	options := huh.NewOptions(ports...)
	for i := range options {
		options[i] = options[i].Selected(options[i].Value == arm.Port)
	}
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Serial port").
				Options(options...).
				Value(&port),
		),
	).Run()
	if err != nil {
		return err
	}
	arm.Port = port
	return nil
}

func listPorts() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Error listing ports: %v", err)))
		return nil
	}

	var out []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		out = append(out, port)
	}
	return out
}

func editRun(cfg *robot.Config) error {
	run := cfg.Run
	cold := run.ColdBathTime.String()
	hot := run.HotBathTime.String()
	wait := run.WaitTime.String()
	cycles := strconv.Itoa(run.Cycles)
	runNumber := strconv.Itoa(run.RunNumber)
	speed := strconv.Itoa(run.Speed)
	sensorEnabled := cfg.Sensor.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Experiment name").Value(&run.ExperimentName),
			huh.NewInput().Title("Person responsible").Value(&run.Operator),
			huh.NewInput().Title("Run number").Value(&runNumber).Validate(positiveInt),
		),
		huh.NewGroup(
			huh.NewInput().Title("Cryogenic bath time").Description("e.g. 60s").Value(&cold).Validate(minDuration(robot.TransferAllowance)),
			huh.NewInput().Title("Water bath time").Description("e.g. 3m").Value(&hot).Validate(minDuration(robot.TransferAllowance)),
			huh.NewInput().Title("Wait between cycles").Description("at least 2s").Value(&wait).Validate(minDuration(robot.MinWaitTime)),
			huh.NewInput().Title("Number of cycles").Value(&cycles).Validate(positiveInt),
			huh.NewInput().Title("Speed").Description("1-100").Value(&speed).Validate(speedValue),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Log water temperature from the DS18B20 probe?").Value(&sensorEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	// The validators above guarantee these parse.
	run.ColdBathTime, _ = time.ParseDuration(cold)
	run.HotBathTime, _ = time.ParseDuration(hot)
	run.WaitTime, _ = time.ParseDuration(wait)
	run.Cycles, _ = strconv.Atoi(cycles)
	run.RunNumber, _ = strconv.Atoi(runNumber)
	run.Speed, _ = strconv.Atoi(speed)

	cfg.Run = run
	cfg.Sensor.Enabled = sensorEnabled
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return errors.New("enter a whole number of at least 1")
	}
	return nil
}

func speedValue(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 100 {
		return errors.New("enter a speed between 1 and 100")
	}
	return nil
}

func minDuration(least time.Duration) func(string) error {
	return func(s string) error {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return errors.New("enter a duration such as 90s or 3m")
		}
		if d < least {
			return fmt.Errorf("must be at least %s", least)
		}
		return nil
	}
}

// calibrateArm records the range of motion of an SO-101 arm while the
// operator moves every joint by hand.
func calibrateArm(port string) (robot.Calibration, error) {
	fmt.Printf("Calibrating arm on %s\n", port)
	fmt.Println()

	bus, err := connectToArm(port)
	if err != nil {
		return nil, fmt.Errorf("connect to arm: %w", err)
	}
	defer bus.Close()

	motors := robot.AllMotors()
	ids := make([]int, len(motors))
	for i := range motors {
		ids[i] = i + 1
	}
	group := feetech.NewServoGroupByIDs(bus, ids...)

	// Free the joints so the arm can be moved by hand
	ctx := context.Background()
	if err := group.DisableAll(ctx); err != nil {
		return nil, fmt.Errorf("disable torque: %w", err)
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println()

	start, err := group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	finalModel, err := tea.NewProgram(newRangeModel(group, motors, start)).Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}
	rm := finalModel.(rangeModel)
	if rm.aborted {
		return nil, errors.New("calibration aborted")
	}

	cal := make(robot.Calibration, len(motors))
	for i, name := range motors {
		cal[name] = robot.MotorCalibration{
			ID:       i + 1,
			RangeMin: rm.min[name],
			RangeMax: rm.max[name],
		}
	}
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("incomplete range of motion: %w", err)
	}

	fmt.Println(successStyle.Render("Arm calibrated."))
	return cal, nil
}

func connectToArm(port string) (*feetech.Bus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	servos, err := bus.Scan(ctx, 1, 6)
	if err != nil {
		bus.Close()
		return nil, err
	}

	if !isSOArm(servos) {
		bus.Close()
		return nil, fmt.Errorf("not an SO-101 arm (expected 6 servos with IDs 1-6)")
	}
	return bus, nil
}

func isSOArm(servos []feetech.FoundServo) bool {
	if len(servos) != 6 {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= 6; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

// rangeModel tracks the raw min/max of every motor while the operator
// explores the range of motion.
type rangeModel struct {
	group   *feetech.ServoGroup
	motors  []robot.MotorName
	cur     map[robot.MotorName]int
	min     map[robot.MotorName]int
	max     map[robot.MotorName]int
	done    bool
	aborted bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newRangeModel(group *feetech.ServoGroup, motors []robot.MotorName, start feetech.PositionMap) rangeModel {
	m := rangeModel{
		group:  group,
		motors: motors,
		cur:    make(map[robot.MotorName]int),
		min:    make(map[robot.MotorName]int),
		max:    make(map[robot.MotorName]int),
	}
	for i, name := range motors {
		pos := start[i+1]
		m.cur[name], m.min[name], m.max[name] = pos, pos, pos
	}
	return m
}

func (m rangeModel) Init() tea.Cmd {
	return tick()
}

func (m rangeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}

	case tickMsg:
		positions, err := m.group.Positions(context.Background())
		if err == nil {
			for i, name := range m.motors {
				pos, ok := positions[i+1]
				if !ok {
					continue
				}
				m.cur[name] = pos
				m.min[name] = min(m.min[name], pos)
				m.max[name] = max(m.max[name], pos)
			}
		}
		return m, tick()
	}

	return m, nil
}

func (m rangeModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	rangeGood := cellStyle.Foreground(lipgloss.Color("10"))
	rangeLow := cellStyle.Foreground(lipgloss.Color("9"))

	rows := make([][]string, 0, len(m.motors))
	spans := make([]int, 0, len(m.motors))
	for _, name := range m.motors {
		span := m.max[name] - m.min[name]
		spans = append(spans, span)
		rows = append(rows, []string{
			string(name),
			strconv.Itoa(m.cur[name]),
			strconv.Itoa(m.min[name]),
			strconv.Itoa(m.max[name]),
			strconv.Itoa(span),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case col == 0:
				return subHeaderStyle.UnsetBold().Padding(0, 1)
			case col == 4 && row < len(spans) && spans[row] > 500:
				return rangeGood
			case col == 4:
				return rangeLow
			default:
				return cellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done, q to abort")
}
