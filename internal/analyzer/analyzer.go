// Package analyzer classifies screenshots and proposes clickable elements from
// pixel statistics and blob geometry. Every method is a pure function of the
// frame it is given.
package analyzer

import (
	"image"

	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
)

// PageType is the coarse category of a page
type PageType string

const (
	// PageLogin is a sign-in or sign-up form
	PageLogin PageType = "login_page"
	// PageFeed is a scrolling list of posts
	PageFeed PageType = "feed_page"
	// PageProfile is a single account's overview
	PageProfile PageType = "profile_page"
	// PageSettings is a list of preference rows
	PageSettings PageType = "settings_page"
	// PageUnknown is returned when no signal fired
	PageUnknown PageType = "unknown"
)

// voteOrder fixes tie-breaking between buckets
var voteOrder = []PageType{PageLogin, PageFeed, PageProfile, PageSettings}

// AnalysisResult is the page classification for one frame
type AnalysisResult struct {
	PageType   PageType       `json:"page_type"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details"`
}

// Config tunes the pixel heuristics
type Config struct {
	// MaxWidth downsizes wider frames before page classification (0 disables).
	// Element detection always runs at full resolution.
	MaxWidth int
	// DarkThreshold is the gray level below which a pixel counts as ink
	DarkThreshold uint8
	// MinBlobPixels drops smaller connected components as noise
	MinBlobPixels int
}

// DefaultConfig returns the thresholds used in production
func DefaultConfig() Config {
	return Config{
		MaxWidth:      1280,
		DarkThreshold: 128,
		MinBlobPixels: 20,
	}
}

// Analyzer is the heuristic screen analyzer
type Analyzer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an analyzer. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DarkThreshold == 0 {
		cfg.DarkThreshold = DefaultConfig().DarkThreshold
	}
	if cfg.MinBlobPixels <= 0 {
		cfg.MinBlobPixels = DefaultConfig().MinBlobPixels
	}
	return &Analyzer{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "analyzer")),
	}
}

// colorProfile holds the fraction of pixels falling in each HSV band
type colorProfile struct {
	White      float64
	Blue       float64
	Dark       float64
	Brightness float64
}

// layoutStats summarises blob geometry in the central region
type layoutStats struct {
	Blobs    int
	FormRows int
	ListRows int
}

// DetectPageType classifies the frame by letting text density, colour profile
// and layout cast weighted votes. Confidence is winning votes over all votes.
func (a *Analyzer) DetectPageType(f *frame.Frame) AnalysisResult {
	if f.Width() == 0 || f.Height() == 0 {
		return AnalysisResult{PageType: PageUnknown, Confidence: 0, Details: map[string]any{"empty": true}}
	}
	r := newRaster(f.Image(), a.cfg.MaxWidth)

	density := a.textDensity(r)
	colors := colorProfileOf(r)
	layout := a.layoutOf(r)

	votes := map[PageType]float64{}

	switch {
	case density < 0.05:
		votes[PageLogin] += 2
	case density < 0.15:
		votes[PageProfile]++
		votes[PageSettings]++
	default:
		votes[PageFeed] += 2
	}

	if colors.White > 0.6 {
		votes[PageLogin] += 2
		votes[PageSettings]++
	}
	if colors.Blue > 0.15 {
		votes[PageFeed]++
		votes[PageProfile]++
	}
	if colors.Brightness > 200 {
		votes[PageLogin]++
	} else if colors.Brightness < 80 {
		votes[PageFeed]++
	}

	switch {
	case layout.FormRows >= 2 && layout.ListRows < 3:
		votes[PageLogin] += 3
	case layout.ListRows >= 4:
		votes[PageFeed] += 3
	case layout.ListRows >= 2:
		votes[PageSettings] += 2
	case layout.Blobs > 0 && layout.Blobs <= 5 && layout.FormRows == 0:
		votes[PageProfile]++
	}
	if layout.Blobs > 40 {
		votes[PageFeed]++
	}

	var total float64
	for _, v := range votes {
		total += v
	}

	result := AnalysisResult{
		PageType: PageUnknown,
		Details: map[string]any{
			"text_density":    density,
			"white_ratio":     colors.White,
			"blue_ratio":      colors.Blue,
			"dark_ratio":      colors.Dark,
			"mean_brightness": colors.Brightness,
			"blobs":           layout.Blobs,
			"form_rows":       layout.FormRows,
			"list_rows":       layout.ListRows,
			"votes":           votes,
		},
	}
	if total == 0 {
		return result
	}

	best := PageUnknown
	var bestVotes float64
	for _, pt := range voteOrder {
		if votes[pt] > bestVotes {
			best, bestVotes = pt, votes[pt]
		}
	}
	result.PageType = best
	result.Confidence = bestVotes / total

	a.logger.Debug("page classified",
		zap.String("page_type", string(best)),
		zap.Float64("confidence", result.Confidence))
	return result
}

// textDensity is the fraction of dark pixels after binarisation
func (a *Analyzer) textDensity(r *raster) float64 {
	if len(r.gray) == 0 {
		return 0
	}
	dark := 0
	for _, g := range r.gray {
		if g < a.cfg.DarkThreshold {
			dark++
		}
	}
	return float64(dark) / float64(len(r.gray))
}

// colorProfileOf samples every other pixel in both directions
func colorProfileOf(r *raster) colorProfile {
	var p colorProfile
	var sampled, brightness int
	for y := 0; y < r.h; y += 2 {
		for x := 0; x < r.w; x += 2 {
			h, s, v := r.hsvAt(x, y)
			switch {
			case s < 0.12 && v > 0.86:
				p.White++
			case h >= 190 && h <= 250 && s > 0.35 && v > 0.3:
				p.Blue++
			case v < 0.2:
				p.Dark++
			}
			brightness += int(r.grayAt(x, y))
			sampled++
		}
	}
	if sampled == 0 {
		return p
	}
	n := float64(sampled)
	p.White /= n
	p.Blue /= n
	p.Dark /= n
	p.Brightness = float64(brightness) / n
	return p
}

// centralRegion is the middle 50% of the raster in both directions
func centralRegion(w, h int) image.Rectangle {
	return image.Rect(w/4, h/4, w*3/4, h*3/4)
}

// layoutOf counts outlined form fields and column-wide rows in the central region
func (a *Analyzer) layoutOf(r *raster) layoutStats {
	region := centralRegion(r.w, r.h)
	m := r.mask(region, func(x, y int) bool {
		return r.grayAt(x, y) < a.cfg.DarkThreshold
	})

	var stats layoutStats
	for _, c := range m.components(a.cfg.MinBlobPixels) {
		stats.Blobs++
		w, h := c.bounds.Dx(), c.bounds.Dy()
		aspect := c.aspect()
		switch {
		case c.fill() < 0.35 && aspect >= 3 && aspect <= 20 && h >= 16 && h <= 80 && w >= 60:
			// outlined box: an input field
			stats.FormRows++
		case w >= region.Dx()*6/10 && h <= 120:
			// separators, cards and banners spanning the column
			stats.ListRows++
		}
	}
	return stats
}
