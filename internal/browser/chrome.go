package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
)

// ChromeSource captures the visible viewport of a Manager's page
type ChromeSource struct {
	manager *Manager
	timeout time.Duration
}

var _ frame.Source = (*ChromeSource)(nil)

// Capture takes a viewport screenshot. Viewport pixels map one to one onto
// click coordinates, which is why this is not a full-page capture.
func (s *ChromeSource) Capture(ctx context.Context) (*frame.Frame, error) {
	var buf []byte
	m := s.manager
	if err := m.run(ctx, s.timeout,
		chromedp.EmulateViewport(int64(m.opts.Width), int64(m.opts.Height)),
		chromedp.CaptureScreenshot(&buf),
	); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	f, err := frame.FromBytes(buf, "chrome")
	if err != nil {
		return nil, err
	}
	m.logger.Debug("screenshot captured", zap.String("resolution", f.Resolution().String()))
	return f, nil
}

// Clicker dispatches left clicks through the DevTools input domain
type Clicker struct {
	manager *Manager
	timeout time.Duration
}

// Click presses and releases the left button at p
func (c *Clicker) Click(ctx context.Context, p frame.Point) error {
	if p.X < 0 || p.Y < 0 || p.X >= c.manager.opts.Width || p.Y >= c.manager.opts.Height {
		return fmt.Errorf("click (%d, %d) outside %dx%d viewport", p.X, p.Y, c.manager.opts.Width, c.manager.opts.Height)
	}
	x, y := float64(p.X), float64(p.Y)

	err := c.manager.run(ctx, c.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return fmt.Errorf("mouse move failed: %w", err)
		}
		if err := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithClickCount(1).
			Do(ctx); err != nil {
			return fmt.Errorf("mouse press failed: %w", err)
		}
		if err := input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1).
			Do(ctx); err != nil {
			return fmt.Errorf("mouse release failed: %w", err)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("click at (%d, %d) failed: %w", p.X, p.Y, err)
	}

	c.manager.logger.Debug("clicked", zap.Int("x", p.X), zap.Int("y", p.Y))
	return nil
}
