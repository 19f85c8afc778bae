//go:build gocv

package templatematch

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Backend names the active matching implementation
const Backend = "gocv"

func toGrayMat(img image.Image) (gocv.Mat, error) {
	rgb, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image to mat: %w", err)
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgb, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// matchBest runs TM_CCOEFF_NORMED and returns the top-left offset of the peak
func matchBest(src, tpl image.Image) (image.Point, float64, error) {
	s, err := toGrayMat(src)
	if err != nil {
		return image.Point{}, 0, err
	}
	defer s.Close()

	t, err := toGrayMat(tpl)
	if err != nil {
		return image.Point{}, 0, err
	}
	defer t.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(s, t, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return image.Point{}, 0, fmt.Errorf("match template produced no result")
	}
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	return maxLoc, float64(maxVal), nil
}
