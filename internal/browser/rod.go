package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
)

// RodOptions configures an attached browser
type RodOptions struct {
	// ControlURL is a DevTools HTTP or websocket endpoint, or a bare port
	ControlURL string
	// Quality is the JPEG quality of captures
	Quality int
	// MaxWidth downscales wider captures when positive. Click takes frame
	// coordinates and maps them back to the viewport.
	MaxWidth int
}

// RodSource captures screenshots from a browser that is already running,
// such as one driven by another automation process.
type RodSource struct {
	browser *rod.Browser
	opts    RodOptions
	logger  *zap.Logger

	mu    sync.Mutex
	scale float64
}

var _ frame.Source = (*RodSource)(nil)

// ConnectRod attaches to the browser at opts.ControlURL
func ConnectRod(opts RodOptions, logger *zap.Logger) (*RodSource, error) {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 90
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	wsURL, err := launcher.ResolveURL(opts.ControlURL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve devtools endpoint %q: %w", opts.ControlURL, err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger = logger.With(zap.String("component", "browser"), zap.String("driver", "rod"))
	logger.Info("attached to browser", zap.String("url", wsURL))
	return &RodSource{browser: b, opts: opts, logger: logger, scale: 1}, nil
}

// Capture screenshots the first open page
func (s *RodSource) Capture(ctx context.Context) (*frame.Frame, error) {
	pages, err := s.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("browser has no open pages")
	}

	data, err := pages.First().Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(s.opts.Quality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	scale := 1.0
	if s.opts.MaxWidth > 0 && img.Bounds().Dx() > s.opts.MaxWidth {
		scale = float64(s.opts.MaxWidth) / float64(img.Bounds().Dx())
		img = imaging.Resize(img, s.opts.MaxWidth, 0, imaging.Lanczos)
	}
	s.mu.Lock()
	s.scale = scale
	s.mu.Unlock()

	f := frame.New(img, "rod")
	s.logger.Debug("screenshot captured", zap.String("resolution", f.Resolution().String()), zap.Float64("scale", scale))
	return f, nil
}

// Scale is the downscale factor applied to the most recent capture
func (s *RodSource) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// toViewport maps a point on a frame captured at scale back to page pixels
func toViewport(p frame.Point, scale float64) frame.Point {
	if scale <= 0 || scale == 1 {
		return p
	}
	return frame.Point{
		X: int(math.Round(float64(p.X) / scale)),
		Y: int(math.Round(float64(p.Y) / scale)),
	}
}

// Click left-clicks the first open page at p, given in the coordinates of
// the most recent capture
func (s *RodSource) Click(ctx context.Context, p frame.Point) error {
	pages, err := s.browser.Context(ctx).Pages()
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("browser has no open pages")
	}

	vp := toViewport(p, s.Scale())
	page := pages.First().Context(ctx)
	if err := page.Mouse.MoveTo(proto.NewPoint(float64(vp.X), float64(vp.Y))); err != nil {
		return fmt.Errorf("mouse move failed: %w", err)
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click at (%d, %d) failed: %w", vp.X, vp.Y, err)
	}

	s.logger.Debug("clicked",
		zap.Int("x", p.X), zap.Int("y", p.Y),
		zap.Int("viewport_x", vp.X), zap.Int("viewport_y", vp.Y))
	return nil
}
