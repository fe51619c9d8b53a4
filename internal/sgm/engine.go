package sgm

import (
	"image"
	"log/slog"
	"sync"
	"time"
)

// Stats reports per-stage wall-clock timings of one ProcessFrame call.
type Stats struct {
	CostTime        time.Duration
	AggregationTime time.Duration
	SelectionTime   time.Duration
	RefinementTime  time.Duration
	ValidPixels     int
}

// Engine computes dense disparity maps from rectified stereo pairs using
// semi-global matching. An engine is constructed once from validated
// Options and may process many independent frame pairs; concurrent
// ProcessFrame calls on the same engine are safe.
type Engine struct {
	opts    Options
	volumes sync.Pool // []uint16 of width*height*maxDisparity
}

// New validates opts and constructs an engine.
// Returns a *ConfigError for any invalid field.
func New(opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	size := opts.Width * opts.Height * opts.MaxDisparity
	e := &Engine{opts: opts}
	e.volumes.New = func() any {
		return make([]uint16, size)
	}

	slog.Debug("SGM engine created",
		"width", opts.Width,
		"height", opts.Height,
		"max_disparity", opts.MaxDisparity,
		"paths", opts.NumPaths,
		"cost", string(opts.costKind()),
	)
	return e, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// ProcessFrame computes the disparity map for a rectified stereo pair.
// Both images must match the configured dimensions. The call is stateless
// with respect to prior calls and either returns a complete map or fails
// without partial output.
func (e *Engine) ProcessFrame(left, right *image.Gray) (*DisparityMap, error) {
	m, _, err := e.ProcessFrameWithStats(left, right)
	return m, err
}

// ProcessFrameWithStats is ProcessFrame with per-stage timing information.
func (e *Engine) ProcessFrameWithStats(left, right *image.Gray) (*DisparityMap, Stats, error) {
	var stats Stats

	if err := e.checkDimensions(left, "left"); err != nil {
		return nil, stats, err
	}
	if err := e.checkDimensions(right, "right"); err != nil {
		return nil, stats, err
	}

	width, height, maxDisp := e.opts.Width, e.opts.Height, e.opts.MaxDisparity

	cost := e.getVolume()
	defer e.putVolume(cost)

	start := time.Now()
	buildCostVolume(left, right, cost, width, height, maxDisp, e.opts.costKind())
	stats.CostTime = time.Since(start)

	// Fork one worker per direction; directions only share the read-only
	// cost volume, so the final summation is the sole join point.
	start = time.Now()
	dirs := pathDirections(e.opts.NumPaths)
	dirBufs := make([][]uint16, len(dirs))
	p1, p2 := uint16(e.opts.P1), uint16(e.opts.P2)

	var wg sync.WaitGroup
	for i, dir := range dirs {
		buf := e.getVolume()
		dirBufs[i] = buf
		wg.Add(1)
		go func(dir direction, buf []uint16) {
			defer wg.Done()
			aggregateDirection(cost, buf, width, height, maxDisp, dir, p1, p2)
		}(dir, buf)
	}
	wg.Wait()

	sum := e.getVolume()
	defer e.putVolume(sum)
	copy(sum, dirBufs[0])
	e.putVolume(dirBufs[0])
	for _, buf := range dirBufs[1:] {
		addVolume(sum, buf)
		e.putVolume(buf)
	}
	stats.AggregationTime = time.Since(start)

	start = time.Now()
	m := newDisparityMap(width, height)
	selectDisparities(sum, m, width, height, maxDisp, e.opts.UniquenessRatio)
	applyConsistency(sum, m, width, height, maxDisp)
	stats.SelectionTime = time.Since(start)

	if e.opts.Subpixel {
		start = time.Now()
		refineSubpixel(sum, m, width, height, maxDisp)
		stats.RefinementTime = time.Since(start)
	}

	stats.ValidPixels = m.ValidCount()
	return m, stats, nil
}

func (e *Engine) checkDimensions(img *image.Gray, name string) error {
	b := img.Bounds()
	if b.Dx() != e.opts.Width || b.Dy() != e.opts.Height {
		return &DimensionMismatchError{
			ExpectedWidth:  e.opts.Width,
			ExpectedHeight: e.opts.Height,
			GotWidth:       b.Dx(),
			GotHeight:      b.Dy(),
			Input:          name,
		}
	}
	return nil
}

func (e *Engine) getVolume() []uint16 {
	return e.volumes.Get().([]uint16)
}

func (e *Engine) putVolume(v []uint16) {
	e.volumes.Put(v)
}
