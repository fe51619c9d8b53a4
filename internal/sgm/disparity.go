package sgm

import "image"

// Invalid marks pixels for which no reliable disparity was found.
const Invalid float32 = -1

// transformMax is the upper clamp applied by LinearTransform. Disparity
// maps are remapped into 8-bit intensity range for visualization.
const transformMax float32 = 255

// DisparityMap holds one disparity value per pixel, row-major with
// stride equal to Width. Valid values lie in [0, MaxDisparity); pixels
// rejected by filtering carry the Invalid sentinel.
type DisparityMap struct {
	Width  int
	Height int
	Pix    []float32
}

// newDisparityMap allocates a map with every pixel marked invalid.
func newDisparityMap(width, height int) *DisparityMap {
	pix := make([]float32, width*height)
	for i := range pix {
		pix[i] = Invalid
	}
	return &DisparityMap{Width: width, Height: height, Pix: pix}
}

// At returns the disparity at (x, y).
func (m *DisparityMap) At(x, y int) float32 {
	return m.Pix[y*m.Width+x]
}

// Valid reports whether the pixel at (x, y) carries a valid disparity.
func (m *DisparityMap) Valid(x, y int) bool {
	return m.Pix[y*m.Width+x] != Invalid
}

// ValidCount returns the number of pixels with a valid disparity.
func (m *DisparityMap) ValidCount() int {
	n := 0
	for _, v := range m.Pix {
		if v != Invalid {
			n++
		}
	}
	return n
}

// LinearTransform remaps every valid pixel in place as v*scale + offset,
// clamped to [0, 255]. Invalid pixels pass through unchanged.
func (m *DisparityMap) LinearTransform(scale, offset float32) {
	for i, v := range m.Pix {
		if v == Invalid {
			continue
		}
		v = v*scale + offset
		if v < 0 {
			v = 0
		} else if v > transformMax {
			v = transformMax
		}
		m.Pix[i] = v
	}
}

// Clone returns a deep copy of the map.
func (m *DisparityMap) Clone() *DisparityMap {
	pix := make([]float32, len(m.Pix))
	copy(pix, m.Pix)
	return &DisparityMap{Width: m.Width, Height: m.Height, Pix: pix}
}

// ToGray renders the map as an 8-bit grayscale image, rounding values and
// clamping to [0, 255]. Invalid pixels render as black.
func (m *DisparityMap) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		row := y * m.Width
		for x := 0; x < m.Width; x++ {
			v := m.Pix[row+x]
			if v == Invalid {
				continue
			}
			if v > transformMax {
				v = transformMax
			} else if v < 0 {
				v = 0
			}
			img.Pix[y*img.Stride+x] = uint8(v + 0.5)
		}
	}
	return img
}

// ValidMask renders validity as a binary image: white where the disparity
// survived filtering, black where it was rejected.
func (m *DisparityMap) ValidMask() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		row := y * m.Width
		for x := 0; x < m.Width; x++ {
			if m.Pix[row+x] != Invalid {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}
