package opt

import (
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external mayfly library behind the Optimizer
// interface.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a mayfly optimizer adapter.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the mayfly optimization.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	config := mayfly.NewDefaultConfig()

	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize

	// The library takes scalar bounds shared by all dimensions.
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]

	// Seeded source for reproducible runs.
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Degenerate fallback: evaluate the lower corner.
		fallback := make([]float64, dim)
		copy(fallback, lower[:dim])
		return fallback, eval(fallback)
	}

	return result.GlobalBest.Position, result.GlobalBest.Cost
}
