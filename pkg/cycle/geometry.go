package cycle

import (
	"math"

	"github.com/gwillem/thermocycle/pkg/robot"
)

// Distance returns the Euclidean distance between the positions of two poses.
// Only the first three components are compared; orientation is ignored.
func Distance(p, q robot.Pose) float64 {
	var sum float64
	for i := range 3 {
		d := p[i] - q[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
