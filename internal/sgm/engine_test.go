package sgm

import (
	"errors"
	"image"
	"sync"
	"testing"
)

// textureAt produces a deterministic noise texture so every census window
// is locally unique along the epipolar line.
func textureAt(x, y int) uint8 {
	h := uint32(x)*73856093 ^ uint32(y)*19349663
	h *= 2654435761
	return uint8(h >> 24)
}

// textureImage renders the texture sampled at (x+shift, y). A positive
// shift simulates the right view of a scene at constant disparity shift.
func textureImage(width, height, shift int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = textureAt(x+shift, y)
		}
	}
	return img
}

func testOptions(width, height, maxDisp int) Options {
	opts := DefaultOptions(width, height)
	opts.MaxDisparity = maxDisp
	return opts
}

func TestProcessFrameIdenticalPair(t *testing.T) {
	opts := testOptions(64, 48, 16)
	opts.UniquenessRatio = 0 // flat-cost pixels must survive for this check

	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	img := textureImage(64, 48, 0)
	disp, err := engine.ProcessFrame(img, img)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	const margin = 3
	for y := margin; y < 48-margin; y++ {
		for x := margin; x < 64-margin; x++ {
			v := disp.At(x, y)
			if v == Invalid {
				t.Fatalf("pixel (%d,%d) invalid for identical pair", x, y)
			}
			if v != 0 {
				t.Fatalf("pixel (%d,%d) = %f, want 0 for identical pair", x, y, v)
			}
		}
	}
}

func TestProcessFrameKnownShift(t *testing.T) {
	const (
		width   = 96
		height  = 64
		shift   = 5
		maxDisp = 16
		margin  = 8
	)

	engine, err := New(testOptions(width, height, maxDisp))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	left := textureImage(width, height, 0)
	right := textureImage(width, height, shift)

	disp, err := engine.ProcessFrame(left, right)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	valid := 0
	total := 0
	for y := margin; y < height-margin; y++ {
		for x := margin + maxDisp; x < width-margin; x++ {
			total++
			v := disp.At(x, y)
			if v == Invalid {
				continue
			}
			valid++
			if v < shift-1 || v > shift+1 {
				t.Fatalf("pixel (%d,%d) = %f, want %d±1", x, y, v, shift)
			}
		}
	}

	if valid < total*8/10 {
		t.Errorf("only %d of %d interior pixels valid", valid, total)
	}
}

func TestProcessFrameCeilingPenalties(t *testing.T) {
	const (
		width   = 96
		height  = 64
		shift   = 5
		maxDisp = 16
		margin  = 8
	)

	// At the P2 ceiling the eight path sums reach their worst case
	// 8*(255+P2); a wrap here would scramble winner-take-all.
	opts := testOptions(width, height, maxDisp)
	opts.P1 = 4000
	opts.P2 = maxSupportedPenalty

	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	left := textureImage(width, height, 0)
	right := textureImage(width, height, shift)

	disp, err := engine.ProcessFrame(left, right)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	for y := margin; y < height-margin; y++ {
		for x := margin + maxDisp; x < width-margin; x++ {
			v := disp.At(x, y)
			if v == Invalid {
				continue
			}
			if v < shift-1 || v > shift+1 {
				t.Fatalf("pixel (%d,%d) = %f, want %d±1", x, y, v, shift)
			}
		}
	}
}

func TestProcessFrameRangeInvariant(t *testing.T) {
	const maxDisp = 12
	engine, err := New(testOptions(40, 30, maxDisp))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	left := textureImage(40, 30, 0)
	right := textureImage(40, 30, 3)

	disp, err := engine.ProcessFrame(left, right)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	for i, v := range disp.Pix {
		if v == Invalid {
			continue
		}
		if v < 0 || v >= maxDisp {
			t.Fatalf("pixel %d = %f out of [0, %d)", i, v, maxDisp)
		}
	}
}

func TestProcessFrameIdempotent(t *testing.T) {
	engine, err := New(testOptions(48, 32, 16))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	left := textureImage(48, 32, 0)
	right := textureImage(48, 32, 4)

	first, err := engine.ProcessFrame(left, right)
	if err != nil {
		t.Fatalf("first ProcessFrame failed: %v", err)
	}
	second, err := engine.ProcessFrame(left, right)
	if err != nil {
		t.Fatalf("second ProcessFrame failed: %v", err)
	}

	for i := range first.Pix {
		if first.Pix[i] != second.Pix[i] {
			t.Fatalf("pixel %d differs between runs: %f vs %f", i, first.Pix[i], second.Pix[i])
		}
	}
}

func TestProcessFrameDimensionMismatch(t *testing.T) {
	engine, err := New(testOptions(100, 50, 16))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	good := image.NewGray(image.Rect(0, 0, 100, 50))
	bad := image.NewGray(image.Rect(0, 0, 90, 50))

	disp, err := engine.ProcessFrame(bad, good)
	if err == nil {
		t.Fatal("ProcessFrame should fail on mismatched left image")
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected DimensionMismatchError, got %v", err)
	}
	if disp != nil {
		t.Error("no partial output expected on error")
	}

	if _, err := engine.ProcessFrame(good, bad); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected DimensionMismatchError for right image, got %v", err)
	}
}

func TestProcessFrameConcurrent(t *testing.T) {
	engine, err := New(testOptions(48, 32, 16))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	left := textureImage(48, 32, 0)
	right := textureImage(48, 32, 4)

	reference, err := engine.ProcessFrame(left, right)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	const callers = 4
	results := make([]*DisparityMap, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := engine.ProcessFrame(left, right)
			if err != nil {
				t.Errorf("concurrent ProcessFrame failed: %v", err)
				return
			}
			results[i] = m
		}(i)
	}
	wg.Wait()

	for i, m := range results {
		if m == nil {
			continue
		}
		for j := range m.Pix {
			if m.Pix[j] != reference.Pix[j] {
				t.Fatalf("caller %d pixel %d differs from reference", i, j)
			}
		}
	}
}

func TestProcessFrameFourPaths(t *testing.T) {
	opts := testOptions(48, 32, 16)
	opts.NumPaths = 4

	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	left := textureImage(48, 32, 0)
	right := textureImage(48, 32, 3)

	disp, err := engine.ProcessFrame(left, right)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	hits := 0
	checked := 0
	for y := 8; y < 24; y++ {
		for x := 24; x < 40; x++ {
			checked++
			v := disp.At(x, y)
			if v != Invalid && v >= 2 && v <= 4 {
				hits++
			}
		}
	}
	if hits < checked/2 {
		t.Errorf("4-path aggregation recovered shift on only %d of %d pixels", hits, checked)
	}
}

func TestNewEngineForBackend(t *testing.T) {
	opts := testOptions(32, 24, 8)

	engine, cleanup, err := NewEngineForBackend("cpu", opts)
	if err != nil {
		t.Fatalf("cpu backend should be available: %v", err)
	}
	cleanup()
	if engine == nil {
		t.Fatal("cpu backend returned nil engine")
	}

	if _, _, err := NewEngineForBackend("opencl", opts); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable for opencl, got %v", err)
	}

	if _, _, err := NewEngineForBackend("cuda", opts); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend for cuda, got %v", err)
	}
}
