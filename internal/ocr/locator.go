// Package ocr extracts text fragments with bounding boxes from a frame and
// matches requested labels against them.
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
)

// DefaultMinConfidence is the fragment confidence threshold on the 0-100 scale
const DefaultMinConfidence = 60.0

// Fragment is one piece of text reported by an OCR engine
type Fragment struct {
	Text       string
	Confidence float64 // 0-100
	Box        image.Rectangle
}

// Engine is the OCR library boundary
type Engine interface {
	Name() string
	Recognize(ctx context.Context, f *frame.Frame) ([]Fragment, error)
}

// BBox is a bounding box as origin plus size
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Match is a text fragment that passed the confidence filter
type Match struct {
	// Text is the label that matched as the caller supplied it. For plain
	// extraction it equals RawText.
	Text string `json:"text"`
	// RawText is what the OCR engine read
	RawText    string      `json:"raw_text"`
	Confidence float64     `json:"confidence"`
	BBox       BBox        `json:"bbox"`
	Center     frame.Point `json:"center"`
}

// FindOptions controls label matching
type FindOptions struct {
	// Alternatives are tried after the query, in order
	Alternatives  []string
	CaseSensitive bool
	AllowPartial  bool
	MinConfidence float64
}

// DefaultFindOptions matches case-insensitively and accepts substrings
func DefaultFindOptions() FindOptions {
	return FindOptions{
		AllowPartial:  true,
		MinConfidence: DefaultMinConfidence,
	}
}

// Locator runs OCR passes and label lookups
type Locator struct {
	engine Engine
	logger *zap.Logger
}

// NewLocator creates a locator on top of an engine
func NewLocator(engine Engine, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{
		engine: engine,
		logger: logger.With(zap.String("component", "ocr"), zap.String("engine", engine.Name())),
	}
}

// ExtractText runs one OCR pass and drops empty fragments and those below minConfidence
func (l *Locator) ExtractText(ctx context.Context, f *frame.Frame, minConfidence float64) ([]Match, error) {
	fragments, err := l.engine.Recognize(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ocr pass failed: %w", err)
	}

	matches := make([]Match, 0, len(fragments))
	for _, fr := range fragments {
		text := strings.TrimSpace(fr.Text)
		if text == "" || fr.Confidence < minConfidence {
			continue
		}
		matches = append(matches, Match{
			Text:       text,
			RawText:    text,
			Confidence: fr.Confidence,
			BBox:       BBox{X: fr.Box.Min.X, Y: fr.Box.Min.Y, W: fr.Box.Dx(), H: fr.Box.Dy()},
			Center: frame.Point{
				X: (fr.Box.Min.X + fr.Box.Max.X) / 2,
				Y: (fr.Box.Min.Y + fr.Box.Max.Y) / 2,
			},
		})
	}

	l.logger.Debug("text extracted",
		zap.Int("fragments", len(fragments)),
		zap.Int("kept", len(matches)))
	return matches, nil
}

// FindText looks for query or one of its alternatives. It returns nil when
// nothing matched.
func (l *Locator) FindText(ctx context.Context, f *frame.Frame, query string, opts FindOptions) (*Match, error) {
	fragments, err := l.ExtractText(ctx, f, opts.MinConfidence)
	if err != nil {
		return nil, err
	}
	return MatchText(fragments, query, opts), nil
}

// FindAny tries each query in the order given and returns the first hit.
// Order is priority: an earlier query wins even if a later one scores higher.
// A single OCR pass serves all queries.
func (l *Locator) FindAny(ctx context.Context, f *frame.Frame, queries []string, minConfidence float64) (*Match, error) {
	fragments, err := l.ExtractText(ctx, f, minConfidence)
	if err != nil {
		return nil, err
	}

	opts := DefaultFindOptions()
	opts.MinConfidence = minConfidence
	for _, q := range queries {
		if m := MatchText(fragments, q, opts); m != nil {
			l.logger.Debug("label found", zap.String("label", q), zap.String("raw_text", m.RawText))
			return m, nil
		}
	}
	return nil, nil
}

// MatchText scans fragments in order. For each fragment every candidate label
// is first compared for equality, then, if allowed, for containment. The
// returned match carries the candidate as supplied, not the OCR text.
func MatchText(fragments []Match, query string, opts FindOptions) *Match {
	supplied := append([]string{query}, opts.Alternatives...)

	type candidate struct {
		original string
		cmp      string
	}
	candidates := make([]candidate, 0, len(supplied))
	for _, s := range supplied {
		cmp := strings.TrimSpace(s)
		if cmp == "" {
			continue
		}
		if !opts.CaseSensitive {
			cmp = strings.ToLower(cmp)
		}
		candidates = append(candidates, candidate{original: s, cmp: cmp})
	}
	if len(candidates) == 0 {
		return nil
	}

	for _, fr := range fragments {
		if fr.Confidence < opts.MinConfidence {
			continue
		}
		text := strings.TrimSpace(fr.RawText)
		if !opts.CaseSensitive {
			text = strings.ToLower(text)
		}

		for _, c := range candidates {
			if text == c.cmp {
				return tagged(fr, c.original)
			}
		}
		if !opts.AllowPartial {
			continue
		}
		for _, c := range candidates {
			if strings.Contains(text, c.cmp) {
				return tagged(fr, c.original)
			}
		}
	}
	return nil
}

func tagged(m Match, label string) *Match {
	m.Text = label
	return &m
}
