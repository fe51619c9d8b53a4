package sgm

// Winner-take-all disparity selection, uniqueness filtering, left/right
// consistency and parabolic sub-pixel refinement over the summed
// aggregated cost volume.

// selectDisparities picks the minimum-cost disparity per pixel. Ties
// break toward the lower disparity (strict less-than scan from d=0).
// With a nonzero uniqueness ratio a pixel is rejected when any disparity
// outside best±1 has a cost within ratio percent of the best, following
// the percentage form used by OpenCV's SGBM.
func selectDisparities(sum []uint16, m *DisparityMap, width, height, maxDisp, uniquenessRatio int) {
	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			base := (row + x) * maxDisp

			best := 0
			bestCost := sum[base]
			for d := 1; d < maxDisp; d++ {
				if sum[base+d] < bestCost {
					best = d
					bestCost = sum[base+d]
				}
			}

			if uniquenessRatio > 0 {
				limit := uint32(bestCost) * uint32(100+uniquenessRatio)
				unique := true
				for d := 0; d < maxDisp; d++ {
					if d == best || d == best-1 || d == best+1 {
						continue
					}
					if uint32(sum[base+d])*100 <= limit {
						unique = false
						break
					}
				}
				if !unique {
					continue
				}
			}

			m.Pix[row+x] = float32(best)
		}
	}
}

// applyConsistency invalidates pixels whose left-to-right match is not
// confirmed within one pixel by the right-to-left match. The right
// disparity is recovered from the same aggregated volume by scanning
// S(y, x+d, d), avoiding a second matching pass.
func applyConsistency(sum []uint16, m *DisparityMap, width, height, maxDisp int) {
	rightDisp := make([]int16, width*height)

	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			best := int16(0)
			bestCost := uint16(0xFFFF)
			for d := 0; d < maxDisp && x+d < width; d++ {
				c := sum[(row+x+d)*maxDisp+d]
				if c < bestCost {
					best = int16(d)
					bestCost = c
				}
			}
			rightDisp[row+x] = best
		}
	}

	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			v := m.Pix[row+x]
			if v == Invalid {
				continue
			}
			d := int(v)
			xr := x - d
			if xr < 0 {
				m.Pix[row+x] = Invalid
				continue
			}
			diff := int(rightDisp[row+xr]) - d
			if diff < -1 || diff > 1 {
				m.Pix[row+x] = Invalid
			}
		}
	}
}

// refineSubpixel fits a parabola through the aggregated costs at d-1, d,
// d+1 and moves each surviving disparity to the parabola minimum. Pixels
// whose winner sits at the edge of the search range keep their integer
// value.
func refineSubpixel(sum []uint16, m *DisparityMap, width, height, maxDisp int) {
	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			v := m.Pix[row+x]
			if v == Invalid {
				continue
			}
			d := int(v)
			if d <= 0 || d >= maxDisp-1 {
				continue
			}

			base := (row + x) * maxDisp
			c0 := int(sum[base+d-1])
			c1 := int(sum[base+d])
			c2 := int(sum[base+d+1])

			denom := c0 + c2 - 2*c1
			if denom <= 0 {
				continue
			}
			offset := float32(c0-c2) / float32(2*denom)
			if offset > 0.5 {
				offset = 0.5
			} else if offset < -0.5 {
				offset = -0.5
			}
			m.Pix[row+x] = float32(d) + offset
		}
	}
}
