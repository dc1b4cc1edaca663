package cycle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/thermocycle/pkg/notify"
	"github.com/gwillem/thermocycle/pkg/robot"
)

func TestMove_ConfirmedFirstTime(t *testing.T) {
	h := newHarness(t, testRun(), robot.MotionConfig{})
	target := pose(200, 0, 100)
	start := h.clock.Now()

	require.NoError(t, h.ctrl.Move(context.Background(), target, 50, robot.ModeLinear))

	assert.Equal(t, []robot.Pose{target}, h.driver.sent)
	assert.Equal(t, []int{50}, h.driver.speeds)
	assert.Equal(t, 2*time.Second, h.clock.Now().Sub(start), "settle delay")
}

func TestMove_RetriesUntilConverged(t *testing.T) {
	h := newHarness(t, testRun(), robot.MotionConfig{})
	h.driver.follow = false
	target := pose(200, 0, 100)
	h.driver.pose = target
	// Three readings far from the target before the arm arrives.
	h.driver.readings = []robot.Pose{pose(0, 0, 0), pose(100, 0, 100), pose(180, 0, 100)}

	require.NoError(t, h.ctrl.Move(context.Background(), target, 100, robot.ModeLinear))

	assert.Len(t, h.driver.sent, 4, "initial command plus one per failed verification")
	for _, p := range h.driver.sent {
		assert.Equal(t, target, p)
	}
	assert.Len(t, h.alerts.messages, 3)
	assert.Equal(t, 3, h.logs.count(slog.LevelError, "Distance Error"))
	assert.Equal(t, 1, h.logs.count(slog.LevelInfo, "Distance Error is 0.00"))
}

func TestMove_RetryCeiling(t *testing.T) {
	h := newHarness(t, testRun(), robot.MotionConfig{MaxAttempts: 5, AlertEvery: 2})
	h.driver.follow = false
	h.driver.pose = pose(0, 0, 0)

	err := h.ctrl.Move(context.Background(), pose(100, 0, 0), 100, robot.ModeLinear)

	require.ErrorIs(t, err, ErrRetryLimit)
	assert.Len(t, h.driver.sent, 5)
	// Alerts on attempts 1, 3 and 5.
	assert.Len(t, h.alerts.messages, 3)
}

func TestMove_StopDuringSettle(t *testing.T) {
	h := newHarness(t, testRun(), robot.MotionConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	h.clock.onSleep = func(time.Time) { cancel() }

	err := h.ctrl.Move(ctx, pose(100, 0, 0), 100, robot.ModeLinear)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, h.driver.sent, 1)
	assert.Zero(t, h.driver.reads, "no verification after a stop")
}

func TestMove_StopDuringRetries(t *testing.T) {
	h := newHarness(t, testRun(), robot.MotionConfig{})
	h.driver.follow = false
	h.driver.pose = pose(0, 0, 0)

	// The operator presses stop after the third alert.
	ctx, cancel := context.WithCancel(context.Background())
	alerts := 0
	h.ctrl.notifier = notify.Func(func(context.Context, string) {
		alerts++
		if alerts == 3 {
			cancel()
		}
	})

	err := h.ctrl.Move(ctx, pose(100, 0, 0), 100, robot.ModeLinear)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, h.driver.sent, 3)
}

func TestMove_StopDuringSend(t *testing.T) {
	h := newHarness(t, testRun(), robot.MotionConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	h.driver.sendErr = func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}

	err := h.ctrl.Move(ctx, pose(100, 0, 0), 100, robot.ModeLinear)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.logs.count(slog.LevelError, "Send coords failed"), "a stop is not a driver fault")
	assert.Zero(t, h.driver.reads)
}

func TestMove_SendErrorLogged(t *testing.T) {
	h := newHarness(t, testRun(), robot.MotionConfig{})
	failures := 1
	h.driver.sendErr = func(context.Context) error {
		if failures > 0 {
			failures--
			return errors.New("serial write failed")
		}
		return nil
	}
	h.driver.follow = false
	h.driver.pose = pose(100, 0, 0)

	require.NoError(t, h.ctrl.Move(context.Background(), pose(100, 0, 0), 100, robot.ModeLinear))
	assert.Equal(t, 1, h.logs.count(slog.LevelError, "Send coords failed"))
}
