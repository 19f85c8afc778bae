//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/dreamup/ui-locator/internal/frame"
)

// TesseractAvailable reports whether this binary was built with tesseract support
const TesseractAvailable = true

// TesseractEngine runs a local tesseract through gosseract. Fragments are
// reported per text line so multi-word labels like "Sign In" stay together.
type TesseractEngine struct {
	mu        sync.Mutex
	client    *gosseract.Client
	languages []string
}

// NewTesseractEngine creates a tesseract engine for the given language set
func NewTesseractEngine(languages []string) (Engine, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tesseract languages: %w", err)
		}
	}
	return &TesseractEngine{client: client, languages: languages}, nil
}

// Name identifies the engine in logs
func (t *TesseractEngine) Name() string {
	return "tesseract"
}

// Recognize runs tesseract over the frame
func (t *TesseractEngine) Recognize(ctx context.Context, f *frame.Frame) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := f.PNG()
	if err != nil {
		return nil, err
	}

	// gosseract clients are not safe for concurrent use
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to load image into tesseract: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	fragments := make([]Fragment, 0, len(boxes))
	for _, b := range boxes {
		fragments = append(fragments, Fragment{
			Text:       b.Word,
			Confidence: b.Confidence,
			Box:        b.Box,
		})
	}
	return fragments, nil
}

// Close releases the tesseract handle
func (t *TesseractEngine) Close() error {
	return t.client.Close()
}
