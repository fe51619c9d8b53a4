package sgm

import (
	"math"
	"testing"
)

func sampleMap() *DisparityMap {
	m := newDisparityMap(4, 2)
	copy(m.Pix, []float32{0, 5, 12.5, Invalid, 63, 1.25, Invalid, 40})
	return m
}

func TestLinearTransformCompose(t *testing.T) {
	const (
		s1, o1 = 1.5, 2.0
		s2, o2 = 0.5, -1.0
	)

	twice := sampleMap()
	twice.LinearTransform(s1, o1)
	twice.LinearTransform(s2, o2)

	once := sampleMap()
	once.LinearTransform(s1*s2, o1*s2+o2)

	for i := range twice.Pix {
		a, b := twice.Pix[i], once.Pix[i]
		if a == Invalid && b == Invalid {
			continue
		}
		if math.Abs(float64(a-b)) > 1e-5 {
			t.Errorf("pixel %d: sequential %f != composed %f", i, a, b)
		}
	}
}

func TestLinearTransformInvalidPassthrough(t *testing.T) {
	m := sampleMap()
	m.LinearTransform(255.0/127.0, 0)

	if m.Pix[3] != Invalid || m.Pix[6] != Invalid {
		t.Error("invalid pixels must pass through unchanged")
	}
	if got := m.Pix[1]; math.Abs(float64(got)-5*255.0/127.0) > 1e-4 {
		t.Errorf("pixel 1 = %f, want %f", got, 5*255.0/127.0)
	}
}

func TestLinearTransformClamps(t *testing.T) {
	m := newDisparityMap(2, 1)
	m.Pix[0] = 200
	m.Pix[1] = 10

	m.LinearTransform(2, 0)
	if m.Pix[0] != 255 {
		t.Errorf("expected clamp to 255, got %f", m.Pix[0])
	}

	m.LinearTransform(1, -100)
	if m.Pix[1] != 0 {
		t.Errorf("expected clamp to 0, got %f", m.Pix[1])
	}
}

func TestValidCount(t *testing.T) {
	m := sampleMap()
	if got := m.ValidCount(); got != 6 {
		t.Errorf("ValidCount = %d, want 6", got)
	}
}

func TestToGray(t *testing.T) {
	m := sampleMap()
	img := m.ToGray()

	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if img.Pix[3] != 0 {
		t.Error("invalid pixel should render black")
	}
	if img.Pix[1] != 5 {
		t.Errorf("pixel 1 = %d, want 5", img.Pix[1])
	}
	if img.Pix[2] != 13 { // 12.5 rounds up
		t.Errorf("pixel 2 = %d, want 13", img.Pix[2])
	}
}

func TestValidMask(t *testing.T) {
	m := sampleMap()
	mask := m.ValidMask()

	if mask.Pix[3] != 0 || mask.Pix[6] != 0 {
		t.Error("invalid pixels should be black in mask")
	}
	if mask.Pix[0] != 255 || mask.Pix[7] != 255 {
		t.Error("valid pixels should be white in mask")
	}
}

func TestCloneIndependent(t *testing.T) {
	m := sampleMap()
	c := m.Clone()
	c.Pix[0] = 99

	if m.Pix[0] == 99 {
		t.Error("Clone must not share backing storage")
	}
}
