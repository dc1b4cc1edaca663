// Package notify alerts the operator when the arm needs attention.
package notify

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// Notifier raises an operator alert. Notify must not block the caller on the
// alert finishing.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Config selects the alert outputs.
type Config struct {
	// Bell rings the terminal bell on stderr.
	Bell bool `yaml:"bell"`
	// Command is run for every alert, e.g. ["aplay", "/usr/share/sounds/alert.wav"].
	Command []string `yaml:"command,omitempty"`
}

// DefaultConfig rings the terminal bell only.
func DefaultConfig() Config {
	return Config{Bell: true}
}

// New builds the notifier described by cfg.
func New(cfg Config, log *slog.Logger) Notifier {
	var out Multi
	if cfg.Bell {
		out = append(out, Bell{W: os.Stderr})
	}
	if len(cfg.Command) > 0 {
		out = append(out, &Command{Name: cfg.Command[0], Args: cfg.Command[1:], Log: log})
	}
	return out
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, message string)

func (f Func) Notify(ctx context.Context, message string) { f(ctx, message) }

// Multi fans an alert out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message string) {
	for _, n := range m {
		n.Notify(ctx, message)
	}
}

// Bell writes the BEL character.
type Bell struct {
	W io.Writer
}

func (b Bell) Notify(ctx context.Context, message string) {
	_, _ = b.W.Write([]byte{'\a'})
}

// Command starts an external program per alert, typically a sound player.
// A previous alert that is still playing is not interrupted, and overlapping
// alerts are skipped.
type Command struct {
	Name string
	Args []string
	Log  *slog.Logger

	mu      sync.Mutex
	running bool
}

func (c *Command) Notify(ctx context.Context, message string) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	cmd := exec.Command(c.Name, c.Args...)
	if err := cmd.Start(); err != nil {
		c.logError("Alert command failed to start", err)
		c.done()
		return
	}

	go func() {
		defer c.done()
		if err := cmd.Wait(); err != nil {
			c.logError("Alert command failed", err)
		}
	}()
}

func (c *Command) done() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Command) logError(msg string, err error) {
	if c.Log != nil {
		c.Log.Warn(msg, "command", c.Name, "error", err)
	}
}
