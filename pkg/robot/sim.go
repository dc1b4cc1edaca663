package robot

import (
	"context"
	"sync"
)

// Sim is an in-memory arm that arrives at every commanded pose immediately.
// It backs dry runs (arm kind "sim") so a sequence can be rehearsed without
// hardware.
type Sim struct {
	mu       sync.Mutex
	pose     Pose
	angles   Pose
	released int
	commands int
}

var (
	_ Driver      = (*Sim)(nil)
	_ AngleReader = (*Sim)(nil)
)

// NewSim returns a simulated arm resting at start.
func NewSim(start Pose) *Sim {
	return &Sim{pose: start.Clone()}
}

func (s *Sim) SendCoords(ctx context.Context, pose Pose, speed int, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = pose.Clone()
	s.commands++
	return nil
}

func (s *Sim) SendAngles(ctx context.Context, angles Pose, speed int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.angles = angles.Clone()
	s.commands++
	return nil
}

func (s *Sim) Coords(ctx context.Context) (Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pose.Valid() {
		return nil, ErrNoReading
	}
	return s.pose.Clone(), nil
}

// Angles returns the last commanded joint angles.
func (s *Sim) Angles(ctx context.Context) (Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.angles.Valid() {
		return nil, ErrNoReading
	}
	return s.angles.Clone(), nil
}

func (s *Sim) ErrorInfo(ctx context.Context) (string, error) {
	return "simulated arm", nil
}

func (s *Sim) ReleaseAllServos(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

func (s *Sim) Close() error { return nil }

// Released returns how many times the brakes were released.
func (s *Sim) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Commands returns how many move commands were sent.
func (s *Sim) Commands() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands
}
