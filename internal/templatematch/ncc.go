//go:build !gocv

package templatematch

import (
	"image"
	"math"
)

// Backend names the active matching implementation
const Backend = "ncc"

// matchBest slides tpl over src and returns the top-left offset with the
// highest zero-mean normalised cross-correlation.
func matchBest(src, tpl image.Image) (image.Point, float64, error) {
	s := toPlane(src)
	t := toPlane(tpl)

	n := float64(t.w * t.h)
	var tMean float64
	for _, v := range t.pix {
		tMean += v
	}
	tMean /= n

	tDev := make([]float64, len(t.pix))
	var tNorm float64
	for i, v := range t.pix {
		tDev[i] = v - tMean
		tNorm += tDev[i] * tDev[i]
	}
	if tNorm == 0 {
		return image.Point{}, 0, errFlatTemplate
	}
	tNorm = math.Sqrt(tNorm)

	best := math.Inf(-1)
	var bestLoc image.Point
	for oy := 0; oy+t.h <= s.h; oy++ {
		for ox := 0; ox+t.w <= s.w; ox++ {
			var sum, sumSq, cross float64
			for y := 0; y < t.h; y++ {
				srow := s.pix[(oy+y)*s.w+ox:]
				trow := tDev[y*t.w:]
				for x := 0; x < t.w; x++ {
					v := srow[x]
					sum += v
					sumSq += v * v
					cross += v * trow[x]
				}
			}
			// sum(tDev) is zero, so cross equals the zero-mean correlation
			variance := sumSq - sum*sum/n
			if variance <= 1e-9 {
				continue
			}
			score := cross / (math.Sqrt(variance) * tNorm)
			if score > best {
				best = score
				bestLoc = image.Point{X: ox, Y: oy}
			}
		}
	}
	if math.IsInf(best, -1) {
		return image.Point{}, 0, nil
	}
	return bestLoc, best, nil
}
