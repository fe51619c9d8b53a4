// Package tune searches SGM smoothness penalties against a ground-truth
// disparity map. The objective is the mean absolute disparity error over
// pixels valid in both maps, plus a penalty on the invalid fraction so
// the optimizer cannot "win" by rejecting everything.
package tune

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/cwbudde/stereosgm/internal/opt"
	"github.com/cwbudde/stereosgm/internal/sgm"
)

// invalidPenalty weighs the invalid-pixel fraction in the objective,
// expressed in disparity units.
const invalidPenalty = 10.0

// GroundTruth is a reference disparity map, typically loaded from a
// Middlebury PFM file. Non-finite or negative values mark unknown pixels.
type GroundTruth struct {
	Width  int
	Height int
	Pix    []float32
}

// Options controls the penalty search.
type Options struct {
	Iters   int
	PopSize int
	Seed    int64
}

// Result holds the tuned penalties and their achieved score.
type Result struct {
	P1           int
	P2           int
	Score        float64
	InitialScore float64
}

// Run tunes P1 and P2 for the given stereo pair against gt, starting from
// base (whose other fields are kept as configured).
func Run(base sgm.Options, left, right *image.Gray, gt GroundTruth, tuneOpts Options) (*Result, error) {
	if gt.Width != base.Width || gt.Height != base.Height {
		return nil, fmt.Errorf("ground truth is %dx%d, engine configured for %dx%d",
			gt.Width, gt.Height, base.Width, base.Height)
	}
	if len(gt.Pix) != gt.Width*gt.Height {
		return nil, fmt.Errorf("ground truth buffer length %d does not match %dx%d",
			len(gt.Pix), gt.Width, gt.Height)
	}

	slog.Info("Starting penalty tuning",
		"iters", tuneOpts.Iters,
		"pop", tuneOpts.PopSize,
		"seed", tuneOpts.Seed,
	)

	eval := func(params []float64) float64 {
		opts := base
		opts.P1, opts.P2 = clampPenalties(params[0], params[1])

		engine, err := sgm.New(opts)
		if err != nil {
			return math.Inf(1)
		}
		disp, err := engine.ProcessFrame(left, right)
		if err != nil {
			return math.Inf(1)
		}
		return Score(disp, gt)
	}

	initialScore := eval([]float64{float64(base.P1), float64(base.P2)})

	lower := []float64{1, 1}
	upper := []float64{float64(sgmPenaltyCeil), float64(sgmPenaltyCeil)}

	optimizer := opt.NewMayfly(tuneOpts.Iters, tuneOpts.PopSize, tuneOpts.Seed)
	best, bestScore := optimizer.Run(eval, lower, upper, 2)

	p1, p2 := clampPenalties(best[0], best[1])
	slog.Info("Penalty tuning complete",
		"p1", p1,
		"p2", p2,
		"initial_score", initialScore,
		"best_score", bestScore,
	)

	return &Result{
		P1:           p1,
		P2:           p2,
		Score:        bestScore,
		InitialScore: initialScore,
	}, nil
}

// sgmPenaltyCeil bounds the penalty search box.
const sgmPenaltyCeil = 255

// clampPenalties maps a raw parameter vector to a valid (P1, P2) pair:
// integer, at least 1, with P2 strictly above P1.
func clampPenalties(a, b float64) (p1, p2 int) {
	if a > b {
		a, b = b, a
	}
	p1 = int(a + 0.5)
	p2 = int(b + 0.5)
	if p1 < 1 {
		p1 = 1
	}
	if p1 > sgmPenaltyCeil-1 {
		p1 = sgmPenaltyCeil - 1
	}
	if p2 <= p1 {
		p2 = p1 + 1
	}
	if p2 > sgmPenaltyCeil {
		p2 = sgmPenaltyCeil
	}
	return p1, p2
}

// Score computes the tuning objective for one disparity map: mean
// absolute error on mutually valid pixels plus invalidPenalty times the
// fraction of pixels the engine rejected but the ground truth knows.
func Score(disp *sgm.DisparityMap, gt GroundTruth) float64 {
	var (
		errSum   float64
		compared int
		known    int
		rejected int
	)

	for i, want := range gt.Pix {
		if !validGT(want) {
			continue
		}
		known++

		got := disp.Pix[i]
		if got == sgm.Invalid {
			rejected++
			continue
		}
		compared++
		errSum += math.Abs(float64(got - want))
	}

	if known == 0 {
		return math.Inf(1)
	}
	score := invalidPenalty * float64(rejected) / float64(known)
	if compared > 0 {
		score += errSum / float64(compared)
	}
	return score
}

func validGT(v float32) bool {
	return v >= 0 && !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v))
}
