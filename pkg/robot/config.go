package robot

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/thermocycle/pkg/logging"
	"github.com/gwillem/thermocycle/pkg/notify"
	"github.com/gwillem/thermocycle/pkg/sensor"
)

const DefaultConfigFile = "thermocycle.yaml"

// Arm driver kinds.
const (
	KindMyCobot = "mycobot"
	KindFeetech = "feetech"
	KindSim     = "sim"
)

// Config holds everything a run needs: the arm connection, the experiment
// parameters, motion tuning and the recorded waypoints.
type Config struct {
	Arm       ArmConfig      `yaml:"arm"`
	Run       RunConfig      `yaml:"run"`
	Motion    MotionConfig   `yaml:"motion"`
	Waypoints Waypoints      `yaml:"waypoints"`
	Sensor    sensor.Config  `yaml:"sensor"`
	Notify    notify.Config  `yaml:"notify"`
	Log       logging.Config `yaml:"log"`
}

// ArmConfig selects and connects the arm driver.
type ArmConfig struct {
	Kind            string        `yaml:"kind"`
	Port            string        `yaml:"port,omitempty"`
	BaudRate        int           `yaml:"baud_rate,omitempty"`
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	CalibrationFile string        `yaml:"calibration_file,omitempty"`
	Calibration     Calibration   `yaml:"calibration,omitempty"`
	// ErrorInfoCommand overrides the MyCobot error-info protocol code.
	ErrorInfoCommand byte `yaml:"error_info_command,omitempty"`
}

// RunConfig is the experiment definition. It is fixed for the duration of a run.
type RunConfig struct {
	ExperimentName string        `yaml:"experiment_name"`
	Operator       string        `yaml:"operator"`
	ColdBathTime   time.Duration `yaml:"cold_bath_time"`
	HotBathTime    time.Duration `yaml:"hot_bath_time"`
	WaitTime       time.Duration `yaml:"wait_time"`
	Cycles         int           `yaml:"cycles"`
	RunNumber      int           `yaml:"run_number"`
	Speed          int           `yaml:"speed"`
}

// MinWaitTime is the shortest allowed pause between cycles.
const MinWaitTime = 2 * time.Second

// TransferAllowance is subtracted from each bath time to account for the
// moves in and out of the bath.
const TransferAllowance = 2 * time.Second

// Validate checks the run parameters.
func (r RunConfig) Validate() error {
	var errs []error
	if r.Speed < 1 || r.Speed > 100 {
		errs = append(errs, fmt.Errorf("speed %d out of range 1-100", r.Speed))
	}
	if r.Cycles < 1 {
		errs = append(errs, fmt.Errorf("cycles must be at least 1, got %d", r.Cycles))
	}
	if r.WaitTime < MinWaitTime {
		errs = append(errs, fmt.Errorf("wait time %s below minimum %s", r.WaitTime, MinWaitTime))
	}
	if r.ColdBathTime < TransferAllowance {
		errs = append(errs, fmt.Errorf("cold bath time %s shorter than transfer allowance %s", r.ColdBathTime, TransferAllowance))
	}
	if r.HotBathTime < TransferAllowance {
		errs = append(errs, fmt.Errorf("hot bath time %s shorter than transfer allowance %s", r.HotBathTime, TransferAllowance))
	}
	return errors.Join(errs...)
}

// MotionConfig tunes the verified-move primitive. Zero fields take the
// defaults from DefaultMotion.
type MotionConfig struct {
	SettleDelay    time.Duration `yaml:"settle_delay"`
	VerifyTimeout  time.Duration `yaml:"verify_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	WaitInterval   time.Duration `yaml:"wait_interval"`
	ApproachSettle time.Duration `yaml:"approach_settle"`
	BrakePause     time.Duration `yaml:"brake_pause"`
	ApproachSpeed  int           `yaml:"approach_speed"`
	InsertSpeed    int           `yaml:"insert_speed"`
	NearThreshold  float64       `yaml:"near_threshold"`
	FarThreshold   float64       `yaml:"far_threshold"`
	// MaxAttempts bounds the retries of a single move; 0 retries forever.
	MaxAttempts int `yaml:"max_attempts"`
	// AlertEvery notifies the operator on every Nth failed verification.
	AlertEvery int `yaml:"alert_every"`
}

// DefaultMotion returns the tuning used on the lab instrument.
func DefaultMotion() MotionConfig {
	return MotionConfig{
		SettleDelay:    2 * time.Second,
		VerifyTimeout:  5 * time.Second,
		PollInterval:   100 * time.Millisecond,
		WaitInterval:   200 * time.Millisecond,
		ApproachSettle: time.Second,
		BrakePause:     500 * time.Millisecond,
		ApproachSpeed:  100,
		InsertSpeed:    30,
		NearThreshold:  10,
		FarThreshold:   15,
		MaxAttempts:    0,
		AlertEvery:     1,
	}
}

// WithDefaults fills unset fields from DefaultMotion.
func (m MotionConfig) WithDefaults() MotionConfig {
	d := DefaultMotion()
	if m.SettleDelay == 0 {
		m.SettleDelay = d.SettleDelay
	}
	if m.VerifyTimeout == 0 {
		m.VerifyTimeout = d.VerifyTimeout
	}
	if m.PollInterval == 0 {
		m.PollInterval = d.PollInterval
	}
	if m.WaitInterval == 0 {
		m.WaitInterval = d.WaitInterval
	}
	if m.ApproachSettle == 0 {
		m.ApproachSettle = d.ApproachSettle
	}
	if m.BrakePause == 0 {
		m.BrakePause = d.BrakePause
	}
	if m.ApproachSpeed == 0 {
		m.ApproachSpeed = d.ApproachSpeed
	}
	if m.InsertSpeed == 0 {
		m.InsertSpeed = d.InsertSpeed
	}
	if m.NearThreshold == 0 {
		m.NearThreshold = d.NearThreshold
	}
	if m.FarThreshold == 0 {
		m.FarThreshold = d.FarThreshold
	}
	if m.AlertEvery <= 0 {
		m.AlertEvery = d.AlertEvery
	}
	return m
}

// Waypoint names, as used in the config file and by the teach command.
const (
	WaypointRest            = "rest"
	WaypointMid             = "mid"
	WaypointAboveCold       = "above_cold"
	WaypointAboveColdAngles = "above_cold_angles"
	WaypointInsideCold      = "inside_cold"
	WaypointAboveHot        = "above_hot"
	WaypointInsideHot       = "inside_hot"
)

// Waypoints are the fixed poses of the experiment.
type Waypoints struct {
	Rest       Pose `yaml:"rest"`
	Mid        Pose `yaml:"mid"`
	AboveCold  Pose `yaml:"above_cold"`
	InsideCold Pose `yaml:"inside_cold"`
	AboveHot   Pose `yaml:"above_hot"`
	InsideHot  Pose `yaml:"inside_hot"`
	// AboveColdAngles is the joint-space twin of AboveCold, used for the fast
	// approach that starts each cycle. Optional.
	AboveColdAngles Pose `yaml:"above_cold_angles,omitempty"`
}

// WaypointNames lists the waypoints in the order they are taught.
func WaypointNames() []string {
	return []string{
		WaypointRest,
		WaypointMid,
		WaypointAboveCold,
		WaypointAboveColdAngles,
		WaypointInsideCold,
		WaypointAboveHot,
		WaypointInsideHot,
	}
}

func (w *Waypoints) field(name string) *Pose {
	switch name {
	case WaypointRest:
		return &w.Rest
	case WaypointMid:
		return &w.Mid
	case WaypointAboveCold:
		return &w.AboveCold
	case WaypointAboveColdAngles:
		return &w.AboveColdAngles
	case WaypointInsideCold:
		return &w.InsideCold
	case WaypointAboveHot:
		return &w.AboveHot
	case WaypointInsideHot:
		return &w.InsideHot
	}
	return nil
}

// Get returns the named waypoint.
func (w Waypoints) Get(name string) (Pose, bool) {
	p := w.field(name)
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Set stores pose under the named waypoint.
func (w *Waypoints) Set(name string, pose Pose) error {
	p := w.field(name)
	if p == nil {
		return fmt.Errorf("unknown waypoint %q", name)
	}
	if !pose.Valid() {
		return fmt.Errorf("waypoint %s: want %d components, got %d", name, PoseLen, len(pose))
	}
	*p = pose.Clone()
	return nil
}

// Validate checks that every required waypoint has six components.
func (w Waypoints) Validate() error {
	var errs []error
	for _, name := range WaypointNames() {
		p, _ := w.Get(name)
		if name == WaypointAboveColdAngles && len(p) == 0 {
			continue
		}
		if !p.Valid() {
			errs = append(errs, fmt.Errorf("waypoint %s: want %d components, got %d", name, PoseLen, len(p)))
		}
	}
	return errors.Join(errs...)
}

// DefaultConfig returns a simulated-arm configuration with the lab defaults.
func DefaultConfig() *Config {
	zero := func() Pose { return make(Pose, PoseLen) }
	return &Config{
		Arm: ArmConfig{
			Kind:        KindSim,
			BaudRate:    DefaultMyCobotBaud,
			ReadTimeout: 200 * time.Millisecond,
		},
		Run: RunConfig{
			ExperimentName: "Experiment Name",
			Operator:       "Person Responsible",
			ColdBathTime:   60 * time.Second,
			HotBathTime:    180 * time.Second,
			WaitTime:       5 * time.Second,
			Cycles:         1,
			RunNumber:      1,
			Speed:          100,
		},
		Motion: DefaultMotion(),
		Waypoints: Waypoints{
			Rest:       zero(),
			Mid:        zero(),
			AboveCold:  zero(),
			InsideCold: zero(),
			AboveHot:   zero(),
			InsideHot:  zero(),
		},
		Sensor: sensor.DefaultConfig(),
		Notify: notify.DefaultConfig(),
		Log:    logging.DefaultConfig(),
	}
}

// Validate checks the run parameters and waypoints.
func (c *Config) Validate() error {
	var errs []error
	switch c.Arm.Kind {
	case KindMyCobot, KindFeetech:
		if c.Arm.Port == "" {
			errs = append(errs, fmt.Errorf("arm %s: port not set", c.Arm.Kind))
		}
	case KindSim:
	default:
		errs = append(errs, fmt.Errorf("unknown arm kind %q", c.Arm.Kind))
	}
	if err := c.Run.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("run: %w", err))
	}
	if err := c.Waypoints.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("waypoints: %w", err))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Settings missing
// from the file keep their DefaultConfig values.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.Motion = cfg.Motion.WithDefaults()
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OpenDriver connects the arm described by the config.
func (a ArmConfig) OpenDriver(start Pose) (Driver, error) {
	switch a.Kind {
	case KindMyCobot:
		arm, err := OpenMyCobot(a.Port, a.BaudRate, a.ReadTimeout)
		if err != nil {
			return nil, err
		}
		arm.SetErrorInfoCommand(a.ErrorInfoCommand)
		return arm, nil
	case KindFeetech:
		cal := a.Calibration
		if a.CalibrationFile != "" {
			loaded, err := LoadCalibration(a.CalibrationFile)
			if err != nil {
				return nil, err
			}
			cal = loaded
		}
		return NewFeetechArm(a.Port, cal)
	case KindSim:
		return NewSim(start), nil
	default:
		return nil, fmt.Errorf("unknown arm kind %q", a.Kind)
	}
}
