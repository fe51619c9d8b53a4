package opt

// Optimizer defines a derivative-free minimization algorithm.
type Optimizer interface {
	// Run minimizes eval over the box [lower, upper] in dim dimensions.
	// Returns the best parameter vector found and its cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
