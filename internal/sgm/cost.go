package sgm

import "image"

// outOfRangeCost is the sentinel matching cost assigned to disparity
// candidates whose right-image coordinate x-d falls outside the frame.
// It exceeds any reachable census (24) or absolute-difference (255) cost
// only marginally on purpose: the aggregation recurrence adds P2 on top,
// so an absurdly large sentinel would risk uint16 overflow.
const outOfRangeCost uint16 = 255

// buildCostVolume fills vol with the raw matching cost for every pixel
// and candidate disparity. vol is laid out [y][x][d] row-major with
// len(vol) == width*height*maxDisp.
func buildCostVolume(left, right *image.Gray, vol []uint16, width, height, maxDisp int, kind CostKind) {
	switch kind {
	case CostAbsDiff:
		buildAbsDiffVolume(left, right, vol, width, height, maxDisp)
	default:
		buildCensusVolume(left, right, vol, width, height, maxDisp)
	}
}

func buildCensusVolume(left, right *image.Gray, vol []uint16, width, height, maxDisp int) {
	censusLeft := censusTransform(left, width, height)
	censusRight := censusTransform(right, width, height)

	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			base := (row + x) * maxDisp
			descLeft := censusLeft[row+x]
			for d := 0; d < maxDisp; d++ {
				if x-d < 0 {
					vol[base+d] = outOfRangeCost
					continue
				}
				vol[base+d] = hamming32(descLeft, censusRight[row+x-d])
			}
		}
	}
}

func buildAbsDiffVolume(left, right *image.Gray, vol []uint16, width, height, maxDisp int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			base := (y*width + x) * maxDisp
			lv := int(left.Pix[y*left.Stride+x])
			for d := 0; d < maxDisp; d++ {
				if x-d < 0 {
					vol[base+d] = outOfRangeCost
					continue
				}
				diff := lv - int(right.Pix[y*right.Stride+x-d])
				if diff < 0 {
					diff = -diff
				}
				vol[base+d] = uint16(diff)
			}
		}
	}
}
