package robot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestRunConfig_Validate(t *testing.T) {
	base := DefaultConfig().Run

	tests := []struct {
		name   string
		modify func(*RunConfig)
	}{
		{"speed zero", func(r *RunConfig) { r.Speed = 0 }},
		{"speed above 100", func(r *RunConfig) { r.Speed = 101 }},
		{"no cycles", func(r *RunConfig) { r.Cycles = 0 }},
		{"wait below minimum", func(r *RunConfig) { r.WaitTime = time.Second }},
		{"cold bath too short", func(r *RunConfig) { r.ColdBathTime = time.Second }},
		{"hot bath too short", func(r *RunConfig) { r.HotBathTime = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.modify(&r)
			assert.Error(t, r.Validate())
		})
	}

	edge := base
	edge.Speed = 1
	edge.WaitTime = MinWaitTime
	assert.NoError(t, edge.Validate())
}

func TestWaypoints_SetGetValidate(t *testing.T) {
	w := DefaultConfig().Waypoints
	require.NoError(t, w.Validate())

	p := Pose{1, 2, 3, 4, 5, 6}
	require.NoError(t, w.Set(WaypointInsideHot, p))
	got, ok := w.Get(WaypointInsideHot)
	require.True(t, ok)
	assert.Equal(t, p, got)

	p[0] = 99
	assert.Equal(t, 1.0, w.InsideHot[0], "Set stores a copy")

	assert.Error(t, w.Set("nowhere", p))
	assert.Error(t, w.Set(WaypointRest, Pose{1, 2}))

	w.Mid = Pose{1, 2, 3}
	assert.Error(t, w.Validate())
}

func TestWaypoints_ApproachAnglesOptional(t *testing.T) {
	w := DefaultConfig().Waypoints
	w.AboveColdAngles = nil
	assert.NoError(t, w.Validate())

	w.AboveColdAngles = Pose{1, 2, 3}
	assert.Error(t, w.Validate())
}

func TestConfig_Validate_ArmKind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Arm.Kind = KindMyCobot
	assert.Error(t, cfg.Validate(), "port required")

	cfg.Arm.Port = "/dev/ttyAMA0"
	assert.NoError(t, cfg.Validate())

	cfg.Arm.Kind = "ur5"
	assert.Error(t, cfg.Validate())
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)

	cfg := DefaultConfig()
	cfg.Arm = ArmConfig{Kind: KindMyCobot, Port: "/dev/ttyAMA0", BaudRate: 115200}
	cfg.Run.ExperimentName = "Hydrogel freeze-thaw"
	cfg.Run.Cycles = 12
	cfg.Run.ColdBathTime = 90 * time.Second
	cfg.Waypoints.AboveHot = Pose{-120.5, 60, 210, -175, 0, 45}
	require.NoError(t, cfg.SaveTo(path))
	assert.True(t, ConfigExists(path))

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Arm.Port, loaded.Arm.Port)
	assert.Equal(t, cfg.Run, loaded.Run)
	assert.Equal(t, cfg.Waypoints.AboveHot, loaded.Waypoints.AboveHot)
	assert.Equal(t, cfg.Motion, loaded.Motion)
}

func TestLoadConfigFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := `
run:
  experiment_name: Quick check
  cycles: 3
  wait_time: 10s
motion:
  max_attempts: 20
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "Quick check", cfg.Run.ExperimentName)
	assert.Equal(t, 3, cfg.Run.Cycles)
	assert.Equal(t, 10*time.Second, cfg.Run.WaitTime)
	assert.Equal(t, 180*time.Second, cfg.Run.HotBathTime)
	assert.Equal(t, 20, cfg.Motion.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Motion.SettleDelay)
	assert.Equal(t, KindSim, cfg.Arm.Kind)
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.False(t, ConfigExists(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestMotionConfig_WithDefaults(t *testing.T) {
	m := MotionConfig{SettleDelay: 10 * time.Millisecond, AlertEvery: -1}.WithDefaults()
	d := DefaultMotion()

	assert.Equal(t, 10*time.Millisecond, m.SettleDelay)
	assert.Equal(t, d.VerifyTimeout, m.VerifyTimeout)
	assert.Equal(t, d.NearThreshold, m.NearThreshold)
	assert.Equal(t, 1, m.AlertEvery)
	assert.Zero(t, m.MaxAttempts)
}

func TestArmConfig_OpenDriver_Sim(t *testing.T) {
	start := Pose{0, 0, 0, 0, 0, 0}
	d, err := ArmConfig{Kind: KindSim}.OpenDriver(start)
	require.NoError(t, err)
	defer d.Close()

	_, ok := d.(*Sim)
	assert.True(t, ok)

	_, err = ArmConfig{Kind: "ur5"}.OpenDriver(start)
	assert.Error(t, err)
}
