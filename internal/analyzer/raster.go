package analyzer

import (
	"image"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// raster is a working copy of a frame, optionally downscaled, with a
// precomputed grayscale plane. scale maps raster coordinates back to the frame.
type raster struct {
	rgba  *image.NRGBA
	gray  []uint8
	w, h  int
	scale float64
}

func newRaster(img image.Image, maxWidth int) *raster {
	src := img
	scale := 1.0
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		scale = float64(img.Bounds().Dx()) / float64(maxWidth)
		src = imaging.Resize(img, maxWidth, 0, imaging.Box)
	}

	rgba := imaging.Clone(src)
	grayImg := imaging.Grayscale(rgba)

	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	gray := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := grayImg.Pix[y*grayImg.Stride:]
		for x := 0; x < w; x++ {
			gray[y*w+x] = row[x*4]
		}
	}

	return &raster{rgba: rgba, gray: gray, w: w, h: h, scale: scale}
}

func (r *raster) grayAt(x, y int) uint8 {
	return r.gray[y*r.w+x]
}

func (r *raster) hsvAt(x, y int) (h, s, v float64) {
	i := y*r.rgba.Stride + x*4
	c := colorful.Color{
		R: float64(r.rgba.Pix[i]) / 255,
		G: float64(r.rgba.Pix[i+1]) / 255,
		B: float64(r.rgba.Pix[i+2]) / 255,
	}
	return c.Hsv()
}

// toFrame maps a raster rectangle to frame coordinates
func (r *raster) toFrame(rect image.Rectangle) image.Rectangle {
	if r.scale == 1 {
		return rect
	}
	return image.Rect(
		int(float64(rect.Min.X)*r.scale),
		int(float64(rect.Min.Y)*r.scale),
		int(float64(rect.Max.X)*r.scale),
		int(float64(rect.Max.Y)*r.scale),
	)
}

// backgroundGray is the most frequent gray level
func (r *raster) backgroundGray() uint8 {
	var hist [256]int
	for _, g := range r.gray {
		hist[g]++
	}
	best := 0
	for i := range hist {
		if hist[i] > hist[best] {
			best = i
		}
	}
	return uint8(best)
}

func (r *raster) meanGray(rect image.Rectangle) float64 {
	rect = rect.Intersect(image.Rect(0, 0, r.w, r.h))
	if rect.Empty() {
		return 0
	}
	var sum int
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			sum += int(r.grayAt(x, y))
		}
	}
	return float64(sum) / float64(rect.Dx()*rect.Dy())
}

// mask is a binary image over a region of the raster
type mask struct {
	bits   []bool
	origin image.Point
	w, h   int
}

func (r *raster) mask(region image.Rectangle, pred func(x, y int) bool) *mask {
	region = region.Intersect(image.Rect(0, 0, r.w, r.h))
	m := &mask{
		bits:   make([]bool, region.Dx()*region.Dy()),
		origin: region.Min,
		w:      region.Dx(),
		h:      region.Dy(),
	}
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			m.bits[y*m.w+x] = pred(region.Min.X+x, region.Min.Y+y)
		}
	}
	return m
}

func (m *mask) at(x, y int) bool {
	return m.bits[y*m.w+x]
}

// component is a 4-connected blob of set mask pixels
type component struct {
	bounds image.Rectangle
	pixels int
}

func (c component) fill() float64 {
	area := c.bounds.Dx() * c.bounds.Dy()
	if area == 0 {
		return 0
	}
	return float64(c.pixels) / float64(area)
}

func (c component) aspect() float64 {
	if c.bounds.Dy() == 0 {
		return 0
	}
	return float64(c.bounds.Dx()) / float64(c.bounds.Dy())
}

func (c component) center() image.Point {
	return image.Pt((c.bounds.Min.X+c.bounds.Max.X)/2, (c.bounds.Min.Y+c.bounds.Max.Y)/2)
}

// components labels connected regions in scan order. Blobs smaller than
// minPixels are dropped. Bounds are in raster coordinates.
func (m *mask) components(minPixels int) []component {
	seen := make([]bool, len(m.bits))
	var out []component
	queue := make([]int, 0, 256)

	for start, set := range m.bits {
		if !set || seen[start] {
			continue
		}

		seen[start] = true
		queue = append(queue[:0], start)
		minX, minY := m.w, m.h
		maxX, maxY := -1, -1
		count := 0

		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := idx%m.w, idx/m.w
			count++
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= m.w || ny >= m.h {
					continue
				}
				ni := ny*m.w + nx
				if m.bits[ni] && !seen[ni] {
					seen[ni] = true
					queue = append(queue, ni)
				}
			}
		}

		if count < minPixels {
			continue
		}
		out = append(out, component{
			bounds: image.Rect(minX, minY, maxX+1, maxY+1).Add(m.origin),
			pixels: count,
		})
	}
	return out
}
