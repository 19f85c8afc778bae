package analyzer

import (
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/element"
	"github.com/dreamup/ui-locator/internal/frame"
)

// Candidate is a clickable element proposed by one of the detectors
type Candidate struct {
	Type   element.Kind    `json:"type"`
	Coords frame.Point     `json:"coords"`
	Bounds image.Rectangle `json:"bounds"`
	// Score is detector-specific; higher means a cleaner shape match
	Score float64 `json:"score"`
}

// FindClickableElements runs the button, input-field and underlined-link
// detectors and returns their candidates in that order, each in scan order.
func (a *Analyzer) FindClickableElements(f *frame.Frame) []Candidate {
	// full resolution keeps one-pixel borders above the contrast cut
	r := newRaster(f.Image(), 0)

	var out []Candidate
	out = append(out, a.detectButtonsAndFields(r)...)
	out = append(out, a.detectLinks(r)...)

	a.logger.Debug("clickable elements detected", zap.Int("count", len(out)))
	return out
}

// detectButtonsAndFields labels everything that differs from the page
// background. Filled blobs with button proportions become buttons; hollow
// wide boxes with a bright interior become input fields.
func (a *Analyzer) detectButtonsAndFields(r *raster) []Candidate {
	bg := int(r.backgroundGray())
	m := r.mask(image.Rect(0, 0, r.w, r.h), func(x, y int) bool {
		g := int(r.grayAt(x, y))
		if g-bg > 40 || bg-g > 40 {
			return true
		}
		_, s, v := r.hsvAt(x, y)
		return s > 0.35 && v > 0.2
	})

	var buttons, fields []Candidate
	for _, c := range m.components(a.cfg.MinBlobPixels) {
		w, h := c.bounds.Dx(), c.bounds.Dy()
		aspect := c.aspect()

		switch {
		case c.fill() >= 0.7 && w >= 40 && w <= r.w*6/10 && h >= 18 && h <= 90 && aspect >= 1.5 && aspect <= 8:
			buttons = append(buttons, a.candidate(r, element.KindButton, c, c.fill()))
		case c.fill() < 0.35 && aspect >= 3 && h >= 18 && h <= 80 && w >= 80:
			inner := c.bounds.Inset(3)
			if inner.Empty() || r.meanGray(inner) <= 220 {
				continue
			}
			fields = append(fields, a.candidate(r, element.KindInput, c, r.meanGray(inner)/255))
		}
	}
	return append(buttons, fields...)
}

// detectLinks finds link-coloured text whose glyphs are joined by an underline
func (a *Analyzer) detectLinks(r *raster) []Candidate {
	m := r.mask(image.Rect(0, 0, r.w, r.h), func(x, y int) bool {
		h, s, v := r.hsvAt(x, y)
		return h >= 190 && h <= 250 && s > 0.5 && v > 0.4
	})

	var links []Candidate
	for _, c := range m.components(a.cfg.MinBlobPixels) {
		w, h := c.bounds.Dx(), c.bounds.Dy()
		if w < 20 || h < 6 || h > 40 || c.aspect() < 2 || c.fill() >= 0.7 {
			continue
		}
		coverage := underlineCoverage(m, c.bounds)
		if coverage < 0.85 {
			continue
		}
		links = append(links, a.candidate(r, element.KindLink, c, coverage))
	}
	return links
}

// underlineCoverage is the best row coverage among the bottom three rows of b
func underlineCoverage(m *mask, b image.Rectangle) float64 {
	best := 0.0
	for y := b.Max.Y - 1; y >= b.Max.Y-3 && y >= b.Min.Y; y-- {
		set := 0
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.at(x-m.origin.X, y-m.origin.Y) {
				set++
			}
		}
		best = math.Max(best, float64(set)/float64(b.Dx()))
	}
	return best
}

func (a *Analyzer) candidate(r *raster, kind element.Kind, c component, score float64) Candidate {
	bounds := r.toFrame(c.bounds)
	return Candidate{
		Type:   kind,
		Coords: frame.Point{X: (bounds.Min.X + bounds.Max.X) / 2, Y: (bounds.Min.Y + bounds.Max.Y) / 2},
		Bounds: bounds,
		Score:  score,
	}
}

// FindElement returns the first candidate whose kind matches elementType.
// When several input fields exist the one nearest the frame centre wins.
func (a *Analyzer) FindElement(elementType string, f *frame.Frame) (frame.Point, bool) {
	return a.pick(elementType, f, a.FindClickableElements(f))
}

// SmartElementClick is FindElement with a bias for submission buttons: they
// are taken from the lower-centre region of the frame when one is there.
func (a *Analyzer) SmartElementClick(elementType string, f *frame.Frame) (frame.Point, bool) {
	candidates := a.FindClickableElements(f)

	if element.IsSubmission(elementType) {
		region := image.Rect(f.Width()/4, f.Height()/2, f.Width()*3/4, f.Height())
		anchor := frame.Point{X: f.Width() / 2, Y: f.Height() * 3 / 4}

		var best *Candidate
		bestDist := math.MaxFloat64
		for i := range candidates {
			c := &candidates[i]
			if c.Type != element.KindButton || !image.Pt(c.Coords.X, c.Coords.Y).In(region) {
				continue
			}
			if d := distance(c.Coords, anchor); d < bestDist {
				best, bestDist = c, d
			}
		}
		if best != nil {
			a.logger.Debug("submission button picked from lower centre",
				zap.String("element_type", elementType),
				zap.Int("x", best.Coords.X), zap.Int("y", best.Coords.Y))
			return best.Coords, true
		}
	}

	return a.pick(elementType, f, candidates)
}

func (a *Analyzer) pick(elementType string, f *frame.Frame, candidates []Candidate) (frame.Point, bool) {
	kind := element.KindOf(elementType)
	if kind == element.KindUnknown {
		return frame.Point{}, false
	}

	var matching []Candidate
	for _, c := range candidates {
		if c.Type == kind {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return frame.Point{}, false
	}
	if kind != element.KindInput || len(matching) == 1 {
		return matching[0].Coords, true
	}

	center := f.Center()
	best := matching[0]
	for _, c := range matching[1:] {
		if distance(c.Coords, center) < distance(best.Coords, center) {
			best = c
		}
	}
	return best.Coords, true
}

func distance(a, b frame.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
