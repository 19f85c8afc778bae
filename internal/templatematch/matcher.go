// Package templatematch finds caller-supplied reference images inside a frame.
//
// Matching is zero-mean normalised cross-correlation on grayscale images.
// The default backend is pure Go; building with the gocv tag switches to
// OpenCV's TM_CCOEFF_NORMED.
package templatematch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
)

var errFlatTemplate = errors.New("template has no contrast")

// Template is a named reference image
type Template struct {
	Name  string
	Image image.Image
}

// Match is the best template hit in a frame
type Match struct {
	Template string      `json:"template"`
	Center   frame.Point `json:"center"`
	Score    float64     `json:"score"`
}

// Config tunes the matcher
type Config struct {
	// Threshold is the minimum correlation accepted as a hit
	Threshold float64
	// MaxWidth downscales wider frames (and templates by the same factor)
	MaxWidth int
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{Threshold: 0.85, MaxWidth: 640}
}

// Matcher searches frames for a fixed set of templates
type Matcher struct {
	templates []Template
	cfg       Config
	logger    *zap.Logger
}

// New creates a matcher over in-memory templates
func New(templates []Template, cfg Config, logger *zap.Logger) *Matcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		templates: templates,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "templatematch")),
	}
}

// Load reads template images from paths
func Load(paths []string, cfg Config, logger *zap.Logger) (*Matcher, error) {
	templates := make([]Template, 0, len(paths))
	for _, p := range paths {
		img, err := imaging.Open(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load template %s: %w", p, err)
		}
		templates = append(templates, Template{Name: filepath.Base(p), Image: img})
	}
	return New(templates, cfg, logger), nil
}

// Len returns the number of loaded templates
func (m *Matcher) Len() int {
	return len(m.templates)
}

// Find returns the best-scoring template at or above the threshold, or nil
func (m *Matcher) Find(ctx context.Context, f *frame.Frame) (*Match, error) {
	scale := 1.0
	src := f.Image()
	if m.cfg.MaxWidth > 0 && f.Width() > m.cfg.MaxWidth {
		scale = float64(m.cfg.MaxWidth) / float64(f.Width())
		src = imaging.Resize(src, m.cfg.MaxWidth, 0, imaging.Box)
	}
	srcBounds := src.Bounds()

	var best *Match
	for _, t := range m.templates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tpl := t.Image
		if scale != 1 {
			w := max(1, int(math.Round(float64(tpl.Bounds().Dx())*scale)))
			tpl = imaging.Resize(tpl, w, 0, imaging.Box)
		}
		tb := tpl.Bounds()
		if tb.Dx() > srcBounds.Dx() || tb.Dy() > srcBounds.Dy() {
			m.logger.Debug("template larger than frame", zap.String("template", t.Name))
			continue
		}

		if flat(tpl) {
			m.logger.Debug("template skipped", zap.String("template", t.Name), zap.Error(errFlatTemplate))
			continue
		}

		loc, score, err := matchBest(src, tpl)
		if err != nil {
			m.logger.Debug("template skipped", zap.String("template", t.Name), zap.Error(err))
			continue
		}
		if score < m.cfg.Threshold || (best != nil && score <= best.Score) {
			continue
		}

		cx := float64(loc.X) + float64(tb.Dx())/2
		cy := float64(loc.Y) + float64(tb.Dy())/2
		best = &Match{
			Template: t.Name,
			Center: frame.Point{
				X: min(f.Width()-1, int(cx/scale)),
				Y: min(f.Height()-1, int(cy/scale)),
			},
			Score: score,
		}
	}

	if best != nil {
		m.logger.Debug("template matched",
			zap.String("template", best.Template),
			zap.Float64("score", best.Score))
	}
	return best, nil
}

// Fallback adapts the matcher to the orchestrator's template fallback signature
func (m *Matcher) Fallback() func(ctx context.Context, f *frame.Frame) (*frame.Point, error) {
	return func(ctx context.Context, f *frame.Frame) (*frame.Point, error) {
		match, err := m.Find(ctx, f)
		if err != nil || match == nil {
			return nil, err
		}
		p := match.Center
		return &p, nil
	}
}

// plane is a grayscale image as float samples
type plane struct {
	w, h int
	pix  []float64
}

func toPlane(img image.Image) plane {
	g := imaging.Grayscale(img)
	b := g.Bounds()
	p := plane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < p.w; x++ {
			p.pix[y*p.w+x] = float64(row[x*4])
		}
	}
	return p
}

// flat reports whether every pixel of img has the same luminance
func flat(img image.Image) bool {
	p := toPlane(img)
	for _, v := range p.pix {
		if v != p.pix[0] {
			return false
		}
	}
	return true
}
