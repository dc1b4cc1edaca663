package cycle

import (
	"testing"

	"github.com/gwillem/thermocycle/pkg/robot"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		p, q robot.Pose
		want float64
	}{
		{pose(0, 0, 0), pose(0, 0, 0), 0},
		{pose(0, 0, 0), pose(3, 4, 0), 5},
		{pose(1, 2, 3), pose(1, 2, 15), 12},
		{pose(-10, 0, 0), pose(10, 0, 0), 20},
		// Orientation is ignored.
		{robot.Pose{5, 5, 5, 0, 0, 0}, robot.Pose{5, 5, 5, 90, -90, 45}, 0},
	}

	for _, tt := range tests {
		if got := Distance(tt.p, tt.q); got != tt.want {
			t.Errorf("Distance(%v, %v) = %f, want %f", tt.p, tt.q, got, tt.want)
		}
		if got := Distance(tt.q, tt.p); got != tt.want {
			t.Errorf("Distance(%v, %v) = %f, want %f (not symmetric)", tt.q, tt.p, got, tt.want)
		}
		if got := Distance(tt.p, tt.p); got != 0 {
			t.Errorf("Distance(%v, itself) = %f, want 0", tt.p, got)
		}
	}
}
