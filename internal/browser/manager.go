// Package browser supplies screenshots from a Chromium browser and injects
// clicks at located coordinates.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Options configures a launched browser
type Options struct {
	Headless bool
	Width    int
	Height   int
	// NavigationTimeout bounds page loads
	NavigationTimeout time.Duration
}

// DefaultOptions returns a headless 1280x720 browser
func DefaultOptions() Options {
	return Options{Headless: true, Width: 1280, Height: 720, NavigationTimeout: 45 * time.Second}
}

// Manager manages browser lifecycle and navigation
type Manager struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	opts        Options
	logger      *zap.Logger
}

// NewManager launches a local Chromium through chromedp
func NewManager(opts Options, logger *zap.Logger) (*Manager, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", opts.Width, opts.Height)
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultOptions().NavigationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(opts.Width, opts.Height),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser now so launch errors surface here rather than on first capture
	if err := chromedp.Run(ctx, chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height))); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Manager{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		opts:        opts,
		logger:      logger.With(zap.String("component", "browser")),
	}, nil
}

// Close shuts down the browser and cleans up resources
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
}

// run executes actions on the browser while honouring cancellation of ctx
func (m *Manager) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(m.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body to be ready
func (m *Manager) Navigate(ctx context.Context, url string) error {
	err := m.run(ctx, m.opts.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timeout after %v while loading %s", m.opts.NavigationTimeout, url)
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	m.logger.Debug("navigated", zap.String("url", url))
	return nil
}

// Source returns a screenshot source for the current page
func (m *Manager) Source() *ChromeSource {
	return &ChromeSource{manager: m, timeout: 30 * time.Second}
}

// Clicker returns an input injector for the current page
func (m *Manager) Clicker() *Clicker {
	return &Clicker{manager: m, timeout: 10 * time.Second}
}
