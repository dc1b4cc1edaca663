package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/thermocycle/pkg/robot"
)

type TeachCommand struct {
	Interval time.Duration `long:"interval" default:"200ms" description:"Position refresh interval"`
}

const (
	readTimeout   = time.Second
	notTaughtText = "not set"
	chartHeight   = 10
)

// Trace colors for the first three pose components.
var traceColors = []string{"196", "46", "51"}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type teachKeys struct {
	Up      key.Binding
	Down    key.Binding
	Record  key.Binding
	Release key.Binding
	Save    key.Binding
	Quit    key.Binding
}

var keys = teachKeys{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Record:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "record")),
	Release: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "release brakes")),
	Save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k teachKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Record, k.Release, k.Save, k.Quit}
}

func (k teachKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// traceNames labels the plotted pose components: Cartesian axes, or the
// first three joints for a joint-space arm.
func traceNames(kind string) []string {
	if kind == robot.KindFeetech {
		motors := robot.AllMotors()
		return []string{string(motors[0]), string(motors[1]), string(motors[2])}
	}
	return []string{"x", "y", "z"}
}

func newPoseChart(kind string) *streamlinechart.Model {
	limit := 450.0
	if kind == robot.KindFeetech {
		limit = 100
	}
	chart := streamlinechart.New(60, chartHeight,
		streamlinechart.WithYRange(-limit, limit),
	)
	for i, name := range traceNames(kind) {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(traceColors[i]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return &chart
}

type poseMsg struct {
	coords robot.Pose
	angles robot.Pose
	err    error
}

type releasedMsg struct{ err error }

type teachModel struct {
	driver   robot.Driver
	cfg      *robot.Config
	path     string
	interval time.Duration

	help    help.Model
	chart   *streamlinechart.Model
	traces  []string
	names   []string
	cursor  int
	coords  robot.Pose
	angles  robot.Pose
	readErr error
	message string
	failed  bool
	dirty   bool
}

func newTeachModel(driver robot.Driver, cfg *robot.Config, path string, interval time.Duration) teachModel {
	return teachModel{
		driver:   driver,
		cfg:      cfg,
		path:     path,
		interval: interval,
		help:     help.New(),
		chart:    newPoseChart(cfg.Arm.Kind),
		traces:   traceNames(cfg.Arm.Kind),
		names:    robot.WaypointNames(),
		message:  "Brakes released, move the arm by hand",
	}
}

func (m teachModel) readPose() tea.Cmd {
	driver := m.driver
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
		defer cancel()

		msg := poseMsg{}
		msg.coords, msg.err = driver.Coords(ctx)
		if ar, ok := driver.(robot.AngleReader); ok && msg.err == nil {
			msg.angles, _ = ar.Angles(ctx)
		}
		return msg
	}
}

func (m teachModel) release() tea.Cmd {
	driver := m.driver
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
		defer cancel()
		return releasedMsg{err: driver.ReleaseAllServos(ctx)}
	}
}

func (m teachModel) Init() tea.Cmd {
	return m.readPose()
}

func (m teachModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.chart.Resize(max(msg.Width-4, 40), chartHeight)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.names)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Record):
			m.record()
		case key.Matches(msg, keys.Release):
			return m, m.release()
		case key.Matches(msg, keys.Save):
			m.save()
		}

	case poseMsg:
		m.readErr = msg.err
		if msg.err == nil {
			m.coords = msg.coords
			m.angles = msg.angles
			m.plot()
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })

	case tickMsg:
		return m, m.readPose()

	case releasedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("release brakes: %w", msg.err))
		} else {
			m.setMessage("Brakes released")
		}
	}

	return m, nil
}

func (m teachModel) plot() {
	if len(m.coords) < len(m.traces) {
		return
	}
	for i, name := range m.traces {
		m.chart.PushDataSet(name, m.coords[i])
	}
	m.chart.DrawAll()
}

// record stores the live reading under the selected waypoint.
func (m *teachModel) record() {
	name := m.names[m.cursor]
	pose := m.coords
	if name == robot.WaypointAboveColdAngles {
		pose = m.angles
		if pose == nil {
			m.setError(errors.New("this arm does not report joint angles"))
			return
		}
	}
	if m.readErr != nil || !pose.Valid() {
		m.setError(errors.New("no position reading to record"))
		return
	}
	if err := m.cfg.Waypoints.Set(name, pose); err != nil {
		m.setError(err)
		return
	}
	m.dirty = true
	m.setMessage(fmt.Sprintf("Recorded %s = %s", name, pose))
	if m.cursor < len(m.names)-1 {
		m.cursor++
	}
}

func (m *teachModel) save() {
	if err := m.cfg.SaveTo(m.path); err != nil {
		m.setError(fmt.Errorf("save config: %w", err))
		return
	}
	m.dirty = false
	m.setMessage("Saved to " + m.path)
}

func (m *teachModel) setMessage(s string) { m.message, m.failed = s, false }
func (m *teachModel) setError(err error)  { m.message, m.failed = err.Error(), true }

func (m teachModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Thermocycle Teach"))
	sb.WriteString(helpStyle.Render(fmt.Sprintf("  %s (%s)", m.cfg.Arm.Kind, m.path)))
	sb.WriteString("\n\n")

	live := "waiting for reading..."
	switch {
	case m.readErr != nil:
		live = errorStyle.Render(m.readErr.Error())
	case m.coords != nil:
		live = "position " + m.coords.String()
		if m.angles != nil {
			live += "\nangles   " + m.angles.String()
		}
	}
	sb.WriteString(boxStyle.Render(live))
	sb.WriteString("\n")

	rows := make([][]string, 0, len(m.names))
	for i, name := range m.names {
		marker := "  "
		if i == m.cursor {
			marker = "▶ "
		}
		value := notTaughtText
		if p, _ := m.cfg.Waypoints.Get(name); p.Valid() {
			value = p.String()
		}
		rows = append(rows, []string{marker + name, value})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Waypoint", "Recorded").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case row == m.cursor:
				return cursorStyle.Padding(0, 1)
			case col == 1 && rows[row][1] == notTaughtText:
				return dimStyle.Padding(0, 1)
			default:
				return lipgloss.NewStyle().Padding(0, 1)
			}
		})
	sb.WriteString(t.Render())
	sb.WriteString("\n")

	sb.WriteString(boxStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(m.legend())
	sb.WriteString("\n")

	if m.message != "" {
		style := messageStyle
		if m.failed {
			style = errorStyle
		}
		sb.WriteString(style.Render(m.message))
		sb.WriteString("\n")
	}

	sb.WriteString(m.help.View(keys))
	if m.dirty {
		sb.WriteString(helpStyle.Render(" • unsaved changes"))
	}
	sb.WriteString("\n")

	return sb.String()
}

func (m teachModel) legend() string {
	items := make([]string, len(m.traces))
	for i, name := range m.traces {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(traceColors[i])).Bold(true)
		items[i] = swatch.Render("━━") + " " + name
	}
	return strings.Join(items, "  ")
}

func (c *TeachCommand) Execute(args []string) error {
	cfg := robot.DefaultConfig()
	if robot.ConfigExists(opts.Config) {
		loaded, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	driver, err := cfg.Arm.OpenDriver(cfg.Waypoints.Rest)
	if err != nil {
		return fmt.Errorf("connect arm: %w", err)
	}
	defer driver.Close()

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	err = driver.ReleaseAllServos(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("release brakes: %w", err)
	}

	interval := c.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	final, err := tea.NewProgram(newTeachModel(driver, cfg, opts.Config, interval)).Run()
	if err != nil {
		return fmt.Errorf("run teach: %w", err)
	}
	if tm, ok := final.(teachModel); ok && tm.dirty {
		fmt.Println(warnStyle.Render("Quit with unsaved waypoints; nothing written to " + opts.Config))
	}
	return nil
}
