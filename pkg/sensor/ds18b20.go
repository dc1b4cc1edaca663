// Package sensor reads the water bath temperature from a DS18B20 probe on the
// Linux 1-wire bus (w1-gpio and w1-therm kernel modules).
package sensor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Thermometer reads a temperature in degrees Celsius.
type Thermometer interface {
	Temperature(ctx context.Context) (float64, error)
}

// ErrCRC is returned when the probe keeps reporting a failed checksum.
var ErrCRC = errors.New("sensor checksum failed")

// Config locates the probe.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"` // glob for the w1_slave file
}

// DefaultConfig looks for the first DS18B20 (family code 28) on the bus.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Device:  "/sys/bus/w1/devices/28*/w1_slave",
	}
}

// DS18B20 reads a probe through its w1_slave file.
type DS18B20 struct {
	path     string
	retries  int
	interval time.Duration
}

// Open finds the probe matching cfg.Device.
func Open(cfg Config) (*DS18B20, error) {
	matches, err := filepath.Glob(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("bad device pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no 1-wire sensor at %s", cfg.Device)
	}
	return NewDS18B20(matches[0]), nil
}

// NewDS18B20 reads the probe at path.
func NewDS18B20(path string) *DS18B20 {
	return &DS18B20{
		path:     path,
		retries:  10,
		interval: 200 * time.Millisecond,
	}
}

// Temperature returns the probe reading, retrying while the kernel reports a
// bad checksum.
func (d *DS18B20) Temperature(ctx context.Context) (float64, error) {
	for attempt := 0; ; attempt++ {
		data, err := os.ReadFile(d.path)
		if err != nil {
			return 0, fmt.Errorf("read sensor: %w", err)
		}

		temp, err := parseW1Slave(data)
		if !errors.Is(err, ErrCRC) || attempt >= d.retries {
			return temp, err
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(d.interval):
		}
	}
}

// parseW1Slave decodes the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(data []byte) (float64, error) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) < 2 {
		return 0, fmt.Errorf("short sensor output: %q", data)
	}
	if !bytes.HasSuffix(bytes.TrimSpace(lines[0]), []byte("YES")) {
		return 0, ErrCRC
	}

	_, raw, ok := bytes.Cut(lines[1], []byte("t="))
	if !ok {
		return 0, fmt.Errorf("invalid temperature reading: %q", lines[1])
	}
	milli, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil {
		return 0, fmt.Errorf("invalid temperature reading: %w", err)
	}
	return float64(milli) / 1000, nil
}
