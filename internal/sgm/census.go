package sgm

import "image"

// censusRadius defines the 5x5 census window. The transform encodes, for
// each of the 24 neighbors, whether it is darker than the center pixel.
const censusRadius = 2

// censusTransform computes the 24-bit census descriptor for every pixel.
// Border neighbors are clamped to the image edge so descriptors are
// defined everywhere. The result is row-major with stride width.
func censusTransform(img *image.Gray, width, height int) []uint32 {
	out := make([]uint32, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			center := img.Pix[y*img.Stride+x]

			var desc uint32
			for dy := -censusRadius; dy <= censusRadius; dy++ {
				ny := clampInt(y+dy, 0, height-1)
				for dx := -censusRadius; dx <= censusRadius; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx := clampInt(x+dx, 0, width-1)
					desc <<= 1
					if img.Pix[ny*img.Stride+nx] < center {
						desc |= 1
					}
				}
			}
			out[y*width+x] = desc
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
