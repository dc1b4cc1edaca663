package cycle

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gwillem/thermocycle/pkg/notify"
	"github.com/gwillem/thermocycle/pkg/robot"
)

// fakeDriver reports scripted readings, then the last commanded pose when
// follow is set.
type fakeDriver struct {
	pose     robot.Pose
	follow   bool
	readings []robot.Pose // consumed one per Coords call; nil means no reading
	sendErr  func(ctx context.Context) error

	sent     []robot.Pose
	speeds   []int
	angles   []robot.Pose
	released int
	reads    int
}

func (d *fakeDriver) SendCoords(ctx context.Context, pose robot.Pose, speed int, mode robot.Mode) error {
	d.sent = append(d.sent, pose.Clone())
	d.speeds = append(d.speeds, speed)
	if d.sendErr != nil {
		if err := d.sendErr(ctx); err != nil {
			return err
		}
	}
	if d.follow {
		d.pose = pose.Clone()
	}
	return nil
}

func (d *fakeDriver) SendAngles(ctx context.Context, angles robot.Pose, speed int) error {
	d.angles = append(d.angles, angles.Clone())
	return nil
}

func (d *fakeDriver) Coords(ctx context.Context) (robot.Pose, error) {
	d.reads++
	if len(d.readings) > 0 {
		p := d.readings[0]
		d.readings = d.readings[1:]
		if p == nil {
			return nil, robot.ErrNoReading
		}
		return p.Clone(), nil
	}
	return d.pose.Clone(), nil
}

func (d *fakeDriver) ErrorInfo(ctx context.Context) (string, error) {
	return "no error", nil
}

func (d *fakeDriver) ReleaseAllServos(ctx context.Context) error {
	d.released++
	return nil
}

func (d *fakeDriver) Close() error { return nil }

// fakeClock advances instantly on Sleep.
type fakeClock struct {
	now     time.Time
	onSleep func(now time.Time)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 7, 8, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(c.now)
	}
}

// logRecorder captures log messages.
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *logRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *logRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

func (r *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *logRecorder) WithGroup(string) slog.Handler      { return r }

// count returns how many messages at level contain substr.
func (r *logRecorder) count(level slog.Level, substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Level == level && strings.Contains(rec.Message, substr) {
			n++
		}
	}
	return n
}

type alertRecorder struct {
	messages []string
}

func (a *alertRecorder) notifier() notify.Notifier {
	return notify.Func(func(ctx context.Context, message string) {
		a.messages = append(a.messages, message)
	})
}

func pose(x, y, z float64) robot.Pose {
	return robot.Pose{x, y, z, 180, 0, 90}
}

func testWaypoints() robot.Waypoints {
	return robot.Waypoints{
		Rest:            pose(0, 0, 0),
		Mid:             pose(0, 100, 0),
		AboveCold:       pose(200, 0, 100),
		InsideCold:      pose(200, 0, 0),
		AboveHot:        pose(-200, 0, 100),
		InsideHot:       pose(-200, 0, 0),
		AboveColdAngles: robot.Pose{10, 20, 30, 40, 50, 60},
	}
}

func testRun() robot.RunConfig {
	return robot.RunConfig{
		ExperimentName: "freeze-thaw",
		Operator:       "tester",
		ColdBathTime:   60 * time.Second,
		HotBathTime:    180 * time.Second,
		WaitTime:       5 * time.Second,
		Cycles:         1,
		RunNumber:      1,
		Speed:          100,
	}
}

type harness struct {
	ctrl   *Controller
	driver *fakeDriver
	clock  *fakeClock
	logs   *logRecorder
	alerts *alertRecorder
	states []Status
}

func newHarness(t *testing.T, run robot.RunConfig, motion robot.MotionConfig) *harness {
	t.Helper()
	h := &harness{
		driver: &fakeDriver{pose: pose(0, 0, 0), follow: true},
		clock:  newFakeClock(),
		logs:   &logRecorder{},
		alerts: &alertRecorder{},
	}
	ctrl, err := New(Options{
		Driver:    h.driver,
		Run:       run,
		Motion:    motion,
		Waypoints: testWaypoints(),
		Notifier:  h.alerts.notifier(),
		Logger:    slog.New(h.logs),
		Clock:     h.clock,
		OnState:   func(s Status) { h.states = append(h.states, s) },
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func (h *harness) stateSequence() []State {
	out := make([]State, len(h.states))
	for i, s := range h.states {
		out[i] = s.State
	}
	return out
}
