package locator

import (
	"context"
	"fmt"
	"math"

	"github.com/dreamup/ui-locator/internal/element"
	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/ocr"
	"github.com/dreamup/ui-locator/internal/predictor"
)

// Hit is a successful strategy attempt
type Hit struct {
	Coords     frame.Point
	Confidence float64
	Metadata   map[string]any
}

// Outcome is the tagged result of one attempt. At most one of Hit, Err and
// Skipped is set; none set means the strategy ran and found nothing.
type Outcome struct {
	Hit     *Hit
	Err     error
	Skipped string
}

func hit(p frame.Point, confidence float64, meta map[string]any) Outcome {
	return Outcome{Hit: &Hit{Coords: p, Confidence: confidence, Metadata: meta}}
}

func miss() Outcome                 { return Outcome{} }
func skipped(reason string) Outcome { return Outcome{Skipped: reason} }
func failed(err error) Outcome      { return Outcome{Err: err} }
func unavailable() Outcome          { return skipped("unavailable") }
func clamp01(v float64) float64     { return math.Max(0, math.Min(1, v)) }

func (o Outcome) label() string {
	switch {
	case o.Hit != nil:
		return OutcomeHit
	case o.Err != nil:
		return OutcomeError
	case o.Skipped != "":
		return OutcomeSkipped
	default:
		return OutcomeMiss
	}
}

// Strategy is one detection mechanism in the fallback chain
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request, f *frame.Frame) Outcome
}

// Predictor is the learned coordinate predictor capability
type Predictor interface {
	PredictCoords(ctx context.Context, elementType string, f *frame.Frame) (*predictor.Prediction, error)
	RecordClick(ctx context.Context, elementType string, coords frame.Point, f *frame.Frame) error
}

// ElementFinder is the heuristic analyzer capability
type ElementFinder interface {
	SmartElementClick(elementType string, f *frame.Frame) (frame.Point, bool)
}

// TextFinder is the OCR capability
type TextFinder interface {
	FindAny(ctx context.Context, f *frame.Frame, queries []string, minConfidence float64) (*ocr.Match, error)
}

type predictorStrategy struct {
	predictor Predictor
}

func (s predictorStrategy) Name() string { return StrategyMLPredictor }

func (s predictorStrategy) Attempt(ctx context.Context, req Request, f *frame.Frame) Outcome {
	if s.predictor == nil {
		return unavailable()
	}
	pred, err := s.predictor.PredictCoords(ctx, req.ElementType, f)
	if err != nil {
		return failed(err)
	}
	if pred == nil {
		return miss()
	}
	return hit(pred.Coords, pred.Confidence, map[string]any{"samples": pred.Samples})
}

type analyzerStrategy struct {
	finder     ElementFinder
	confidence float64
}

func (s analyzerStrategy) Name() string { return StrategyAnalyzer }

func (s analyzerStrategy) Attempt(ctx context.Context, req Request, f *frame.Frame) Outcome {
	if s.finder == nil {
		return unavailable()
	}
	if req.DisableAnalyzer {
		return skipped("disabled by caller")
	}
	p, ok := s.finder.SmartElementClick(req.ElementType, f)
	if !ok {
		return miss()
	}
	return hit(p, s.confidence, map[string]any{"element_kind": string(element.KindOf(req.ElementType))})
}

type ocrStrategy struct {
	finder        TextFinder
	minConfidence float64
	labelOffset   int
}

func (s ocrStrategy) Name() string { return StrategyOCR }

func (s ocrStrategy) Attempt(ctx context.Context, req Request, f *frame.Frame) Outcome {
	if s.finder == nil {
		return unavailable()
	}
	if len(req.Labels) == 0 {
		return skipped("no labels supplied")
	}
	m, err := s.finder.FindAny(ctx, f, req.Labels, s.minConfidence)
	if err != nil {
		return failed(err)
	}
	if m == nil {
		return miss()
	}

	p := m.Center
	offset := 0
	if element.IsField(req.ElementType) {
		// input fields sit below their label
		offset = s.labelOffset
		p.Y = min(p.Y+offset, f.Height()-1)
	}
	return hit(p, clamp01(m.Confidence/100), map[string]any{
		"matched_label":  m.Text,
		"raw_text":       m.RawText,
		"ocr_confidence": m.Confidence,
		"label_offset":   offset,
	})
}

type templateStrategy struct {
	confidence float64
}

func (s templateStrategy) Name() string { return StrategyTemplate }

func (s templateStrategy) Attempt(ctx context.Context, req Request, f *frame.Frame) Outcome {
	if req.Template == nil {
		return skipped("no template fallback supplied")
	}
	p, err := req.Template(ctx, f)
	if err != nil {
		return failed(err)
	}
	if p == nil {
		return miss()
	}
	return hit(*p, s.confidence, nil)
}

// runStrategy converts a panic inside s into a strategy error
func runStrategy(ctx context.Context, s Strategy, req Request, f *frame.Frame) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(NewStrategyError(s.Name(), "strategy panicked", fmt.Errorf("%v", r)))
		}
	}()
	out = s.Attempt(ctx, req, f)
	if out.Err != nil && CategoryOf(out.Err) == "" {
		out.Err = NewStrategyError(s.Name(), "strategy failed", out.Err)
	}
	if out.Hit != nil && !f.Contains(out.Hit.Coords) {
		out = failed(NewStrategyError(s.Name(),
			fmt.Sprintf("coordinates (%d, %d) outside %s frame", out.Hit.Coords.X, out.Hit.Coords.Y, f.Resolution()), nil))
	}
	return out
}
