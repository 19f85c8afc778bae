package locator

import (
	"context"

	"github.com/dreamup/ui-locator/internal/frame"
)

// Strategy names as they appear in results, logs and metrics
const (
	StrategyMLPredictor = "ml_predictor"
	StrategyAnalyzer    = "advanced_analyzer"
	StrategyOCR         = "ocr"
	StrategyTemplate    = "template"
	StrategyUnresolved  = "unresolved"
)

// TemplateFunc is a caller-supplied template matching fallback. It returns
// nil when nothing matched.
type TemplateFunc func(ctx context.Context, f *frame.Frame) (*frame.Point, error)

// Request describes one locate call
type Request struct {
	ElementType string
	// Labels are tried by OCR in priority order
	Labels []string
	// Template is invoked last, if set
	Template TemplateFunc
	// DisableAnalyzer skips the heuristic analyzer
	DisableAnalyzer bool
	// Frame is used instead of capturing a new one when set
	Frame *frame.Frame
}

// Result is the single return value of Locate. Coords is nil when unresolved.
type Result struct {
	Coords     *frame.Point   `json:"coords"`
	Strategy   string         `json:"strategy"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata"`
	// Frame is the frame the result refers to, nil on capture failure
	Frame *frame.Frame `json:"-"`
}

// Resolved reports whether a strategy produced coordinates
func (r Result) Resolved() bool {
	return r.Coords != nil
}

// Attempts returns the per-strategy trace recorded in the metadata
func (r Result) Attempts() []Attempt {
	a, _ := r.Metadata["attempts"].([]Attempt)
	return a
}

// Attempt outcomes
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Attempt records what one strategy did during a call
type Attempt struct {
	Strategy   string  `json:"strategy"`
	Outcome    string  `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}
