package sgm

// Path aggregation along 1D scanlines, after Hirschmueller's semi-global
// matching recurrence:
//
//	L(p, d) = C(p, d) + min(L(q, d),
//	                        L(q, d-1) + P1,
//	                        L(q, d+1) + P1,
//	                        min_k L(q, k) + P2) - min_k L(q, k)
//
// where q is the previous pixel along the path. Subtracting the previous
// running minimum bounds L by C + P2, which keeps per-path values well
// inside uint16 range.

type direction struct {
	dx, dy int
}

type point struct {
	x, y int
}

// pathDirections returns the aggregation directions for the configured
// path count: horizontal and vertical for 4, plus diagonals for 8.
func pathDirections(numPaths int) []direction {
	dirs := []direction{
		{1, 0}, {-1, 0},
		{0, 1}, {0, -1},
	}
	if numPaths == 8 {
		dirs = append(dirs,
			direction{1, 1}, direction{-1, -1},
			direction{1, -1}, direction{-1, 1},
		)
	}
	return dirs
}

// pathStarts returns every pixel whose predecessor along dir lies outside
// the image. The paths beginning at these pixels partition the image, so
// one sequential walk per start covers every pixel exactly once.
func pathStarts(width, height int, dir direction) []point {
	var starts []point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			onBorder := x == 0 || y == 0 || x == width-1 || y == height-1
			if !onBorder {
				continue
			}
			px, py := x-dir.dx, y-dir.dy
			if px < 0 || px >= width || py < 0 || py >= height {
				starts = append(starts, point{x, y})
			}
		}
	}
	return starts
}

// aggregateDirection accumulates cost along every path of one direction
// into out. Paths are sequentially dependent internally but independent
// of each other and of all other directions.
func aggregateDirection(cost, out []uint16, width, height, maxDisp int, dir direction, p1, p2 uint16) {
	for _, s := range pathStarts(width, height, dir) {
		x, y := s.x, s.y

		// First pixel of the path: no predecessor, aggregated cost is raw.
		base := (y*width + x) * maxDisp
		minPrev := uint16(0xFFFF)
		for d := 0; d < maxDisp; d++ {
			c := cost[base+d]
			out[base+d] = c
			if c < minPrev {
				minPrev = c
			}
		}

		prevBase := base
		x += dir.dx
		y += dir.dy
		for x >= 0 && x < width && y >= 0 && y < height {
			base = (y*width + x) * maxDisp
			jump := minPrev + p2
			minHere := uint16(0xFFFF)

			for d := 0; d < maxDisp; d++ {
				best := out[prevBase+d]
				if d > 0 {
					if c := out[prevBase+d-1] + p1; c < best {
						best = c
					}
				}
				if d < maxDisp-1 {
					if c := out[prevBase+d+1] + p1; c < best {
						best = c
					}
				}
				if jump < best {
					best = jump
				}

				v := cost[base+d] + best - minPrev
				out[base+d] = v
				if v < minHere {
					minHere = v
				}
			}

			minPrev = minHere
			prevBase = base
			x += dir.dx
			y += dir.dy
		}
	}
}

// addVolume accumulates src into dst elementwise.
func addVolume(dst, src []uint16) {
	for i, v := range src {
		dst[i] += v
	}
}
