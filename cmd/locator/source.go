package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreamup/ui-locator/internal/browser"
	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/service"
)

// sourceFlags select where frames come from
type sourceFlags struct {
	image      string
	url        string
	controlURL string
	maxWidth   int
}

// clicker injects a left click at frame coordinates
type clicker interface {
	Click(ctx context.Context, p frame.Point) error
}

// screen is an opened frame source, with a clicker when the source is a browser
type screen struct {
	source  frame.Source
	clicker clicker
	close   func()
	opts    service.Options
}

func openScreen(ctx context.Context, f sourceFlags) (*screen, error) {
	controlURL := f.controlURL
	if controlURL == "" {
		controlURL = cfg.Browser.ControlURL
	}

	switch {
	case f.image != "":
		src := frame.NewFileSource(f.image)
		return &screen{source: src, close: func() {}, opts: service.Options{Source: src}}, nil

	case f.url != "":
		opts := browser.DefaultOptions()
		opts.Headless = cfg.Browser.Headless
		opts.Width = cfg.Browser.Width
		opts.Height = cfg.Browser.Height

		bm, err := browser.NewManager(opts, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		if err := bm.Navigate(ctx, f.url); err != nil {
			bm.Close()
			return nil, err
		}
		src := bm.Source()
		return &screen{
			source:  src,
			clicker: bm.Clicker(),
			close:   bm.Close,
			opts:    service.Options{Source: src, CheckBrowser: true},
		}, nil

	case controlURL != "":
		rs, err := browser.ConnectRod(browser.RodOptions{ControlURL: controlURL, MaxWidth: f.maxWidth}, logger)
		if err != nil {
			return nil, err
		}
		// the attached browser belongs to someone else and stays open
		return &screen{
			source:  rs,
			clicker: rs,
			close:   func() {},
			opts:    service.Options{Source: rs, CheckBrowser: true, BrowserControlURL: controlURL},
		}, nil
	}

	return nil, errors.New("one of --image, --url or --control-url is required")
}
