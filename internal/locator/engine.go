// Package locator arbitrates between detection strategies to find a UI
// element on a screenshot.
//
// Strategies run in a fixed priority order and the first hit wins:
// learned prediction, heuristic analyzer, OCR label matching, then a
// caller-supplied template fallback. A failing or panicking strategy only
// loses its own turn. Locate always returns a Result; an element nobody
// found comes back with Strategy "unresolved" and nil Coords.
package locator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/ocr"
	"github.com/dreamup/ui-locator/internal/preflight"
	"github.com/dreamup/ui-locator/internal/telemetry"
)

// HealthChecker runs preflight diagnostics
type HealthChecker interface {
	RunChecks(ctx context.Context) map[string]preflight.Result
}

// Config holds the orchestrator constants
type Config struct {
	// FieldLabelOffset is how far below an OCR label an input field is clicked
	FieldLabelOffset int
	// AnalyzerConfidence is reported for analyzer hits
	AnalyzerConfidence float64
	// TemplateConfidence is reported for template hits
	TemplateConfidence float64
	// MinOCRConfidence filters OCR fragments (0-100)
	MinOCRConfidence float64
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		FieldLabelOffset:   30,
		AnalyzerConfidence: 0.6,
		TemplateConfidence: 0.4,
		MinOCRConfidence:   ocr.DefaultMinConfidence,
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithPredictor enables the learned predictor and the record-success feedback loop
func WithPredictor(p Predictor) Option { return func(e *Engine) { e.predictor = p } }

// WithAnalyzer enables the heuristic analyzer
func WithAnalyzer(a ElementFinder) Option { return func(e *Engine) { e.analyzer = a } }

// WithOCR enables label matching
func WithOCR(t TextFinder) Option { return func(e *Engine) { e.text = t } }

// WithHealthChecker sets the preflight checker
func WithHealthChecker(h HealthChecker) Option { return func(e *Engine) { e.health = h } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics records locate outcomes
func WithMetrics(m *telemetry.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithConfig overrides the orchestrator constants
func WithConfig(c Config) Option { return func(e *Engine) { e.cfg = c } }

// WithDebugDir saves frames of unresolved calls to dir
func WithDebugDir(dir string) Option { return func(e *Engine) { e.debugDir = dir } }

// Engine is the strategy orchestrator
type Engine struct {
	source    frame.Source
	predictor Predictor
	analyzer  ElementFinder
	text      TextFinder
	health    HealthChecker
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	cfg       Config
	debugDir  string

	strategies []Strategy
}

// New creates an engine. source may be nil when every call supplies a frame.
// Capabilities not passed as options are simply unavailable.
func New(source frame.Source, opts ...Option) *Engine {
	e := &Engine{source: source, cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.With(zap.String("component", "locator"))

	e.strategies = []Strategy{
		predictorStrategy{predictor: e.predictor},
		analyzerStrategy{finder: e.analyzer, confidence: clamp01(e.cfg.AnalyzerConfidence)},
		ocrStrategy{finder: e.text, minConfidence: e.cfg.MinOCRConfidence, labelOffset: e.cfg.FieldLabelOffset},
		templateStrategy{confidence: clamp01(e.cfg.TemplateConfidence)},
	}
	return e
}

// Capabilities reports which optional strategies were configured
func (e *Engine) Capabilities() map[string]bool {
	return map[string]bool{
		StrategyMLPredictor: e.predictor != nil,
		StrategyAnalyzer:    e.analyzer != nil,
		StrategyOCR:         e.text != nil,
		StrategyTemplate:    true,
	}
}

func unresolved(meta map[string]any) Result {
	return Result{Strategy: StrategyUnresolved, Metadata: meta}
}

// Locate runs the fallback chain for req. It never panics and never returns
// an error: failures are reported through the result metadata and logs.
func (e *Engine) Locate(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	meta := map[string]any{"element_type": req.ElementType}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("locate panicked", zap.String("element_type", req.ElementType), zap.Any("panic", r))
			meta["error"] = fmt.Sprintf("locate panicked: %v", r)
			res = unresolved(meta)
		}
		e.metrics.ObserveLocate(res.Strategy, time.Since(start))
	}()

	f, err := e.capture(ctx, req.Frame)
	if err != nil {
		e.logger.Warn("capture failed", zap.String("element_type", req.ElementType), zap.Error(err))
		meta["error"] = err.Error()
		return unresolved(meta)
	}
	meta["resolution"] = f.Resolution().String()

	attempts := make([]Attempt, 0, len(e.strategies))
	meta["attempts"] = attempts

	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Strategy: s.Name(), Outcome: OutcomeSkipped, Reason: err.Error()})
			continue
		}

		stepStart := time.Now()
		out := runStrategy(ctx, s, req, f)
		attempt := Attempt{
			Strategy:   s.Name(),
			Outcome:    out.label(),
			Reason:     out.Skipped,
			DurationMS: float64(time.Since(stepStart).Microseconds()) / 1000,
		}

		if out.Err != nil {
			attempt.Reason = out.Err.Error()
			e.metrics.StrategyError(s.Name())
			e.logger.Debug("strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("element_type", req.ElementType),
				zap.Error(out.Err))
		}
		attempts = append(attempts, attempt)
		meta["attempts"] = attempts

		if out.Hit == nil {
			continue
		}

		for k, v := range out.Hit.Metadata {
			meta[k] = v
		}
		p := out.Hit.Coords
		confidence := clamp01(out.Hit.Confidence)
		e.logger.Info("element located",
			zap.String("element_type", req.ElementType),
			zap.String("strategy", s.Name()),
			zap.Int("x", p.X), zap.Int("y", p.Y),
			zap.Float64("confidence", confidence))
		return Result{Coords: &p, Strategy: s.Name(), Confidence: confidence, Metadata: meta, Frame: f}
	}

	meta["error"] = ErrExhausted.Error()
	if e.debugDir != "" {
		if path, err := f.SaveTo(e.debugDir); err != nil {
			e.logger.Warn("failed to save unresolved frame", zap.Error(err))
		} else {
			meta["debug_frame"] = path
		}
	}
	e.logger.Info("element unresolved", zap.String("element_type", req.ElementType))
	res = unresolved(meta)
	res.Frame = f
	return res
}

func (e *Engine) capture(ctx context.Context, supplied *frame.Frame) (*frame.Frame, error) {
	if supplied != nil {
		return supplied, nil
	}
	if e.source == nil {
		return nil, NewCaptureError("no frame supplied and no screenshot source configured", nil)
	}
	f, err := e.source.Capture(ctx)
	if err != nil {
		return nil, NewCaptureError("screenshot capture failed", err)
	}
	if f == nil {
		return nil, NewCaptureError("screenshot source returned no frame", nil)
	}
	return f, nil
}

// RecordSuccess feeds a confirmed click back into the predictor. Call it only
// after the caller's input action on coords succeeded. It reports whether the
// sample was stored; failures are logged, never returned.
func (e *Engine) RecordSuccess(ctx context.Context, elementType string, coords frame.Point, f *frame.Frame) (stored bool) {
	if e.predictor == nil {
		e.logger.Debug("no predictor configured, sample dropped", zap.String("element_type", elementType))
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			e.persistenceFailed(elementType, NewPersistenceError("record panicked", fmt.Errorf("%v", r)))
			stored = false
		}
	}()

	if f == nil {
		var err error
		if f, err = e.capture(ctx, nil); err != nil {
			e.persistenceFailed(elementType, NewPersistenceError("no frame to record against", err))
			return false
		}
	}

	if err := e.predictor.RecordClick(ctx, elementType, coords, f); err != nil {
		e.persistenceFailed(elementType, NewPersistenceError("failed to record sample", err))
		return false
	}
	e.metrics.TrainingSample("stored")
	e.logger.Info("training sample recorded",
		zap.String("element_type", elementType),
		zap.String("resolution", f.Resolution().String()),
		zap.Int("x", coords.X), zap.Int("y", coords.Y))
	return true
}

func (e *Engine) persistenceFailed(elementType string, err error) {
	e.metrics.TrainingSample("failed")
	e.logger.Warn("training sample not recorded", zap.String("element_type", elementType), zap.Error(err))
}

// RunPreflight runs the configured health checks. Without a checker it
// returns an empty map.
func (e *Engine) RunPreflight(ctx context.Context) (results map[string]preflight.Result) {
	if e.health == nil {
		e.logger.Warn("no health checker configured")
		return map[string]preflight.Result{}
	}
	defer func() {
		if r := recover(); r != nil {
			err := NewHealthCheckError("health checker panicked", fmt.Errorf("%v", r))
			e.logger.Error("preflight failed", zap.Error(err))
			results = map[string]preflight.Result{
				"preflight": {Passed: false, Message: err.Error(), Severity: preflight.SeverityFatal},
			}
		}
	}()

	results = e.health.RunChecks(ctx)
	if preflight.AllPassed(results) {
		e.logger.Info("preflight passed", zap.Int("checks", len(results)))
	} else {
		e.logger.Warn("preflight failed", zap.Strings("fatal", preflight.FatalFailures(results)))
	}
	return results
}
