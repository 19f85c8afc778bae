// Package predictor learns click coordinates from confirmed successes.
//
// Samples are appended to a Store keyed by element type and display
// resolution. Predictions never mix resolutions: a sample recorded at
// 1280x720 is invisible to a 1920x1080 frame.
package predictor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
)

// Sample is one confirmed click. Samples are immutable once appended.
type Sample struct {
	ID          string           `json:"id"`
	ElementType string           `json:"element_type"`
	Coords      frame.Point      `json:"coords"`
	Resolution  frame.Resolution `json:"resolution"`
	Timestamp   time.Time        `json:"timestamp"`
}

// KeyStats counts samples per (element type, resolution)
type KeyStats struct {
	ElementType string           `json:"element_type"`
	Resolution  frame.Resolution `json:"resolution"`
	Samples     int              `json:"samples"`
}

// Store is an append-only training log
type Store interface {
	// Append adds a sample atomically
	Append(ctx context.Context, s Sample) error
	// Recent returns up to limit samples for the key, newest first
	Recent(ctx context.Context, elementType string, res frame.Resolution, limit int) ([]Sample, error)
	// Stats summarises the log per key
	Stats(ctx context.Context) ([]KeyStats, error)
}

// Prediction is a coordinate estimate derived from stored samples
type Prediction struct {
	Coords     frame.Point `json:"coords"`
	Confidence float64     `json:"confidence"`
	Samples    int         `json:"samples"`
}

// Config controls aggregation and confidence
type Config struct {
	// Window is how many of the newest samples are averaged
	Window int
	// MaxConfidence caps the confidence of any prediction
	MaxConfidence float64
	// SaturationSamples is the sample count at which confidence reaches its cap
	SaturationSamples int
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		Window:            10,
		MaxConfidence:     0.95,
		SaturationSamples: 10,
	}
}

// Predictor answers coordinate queries from the training log
type Predictor struct {
	store  Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a predictor over store
func New(store Store, cfg Config, logger *zap.Logger) *Predictor {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxConfidence <= 0 || cfg.MaxConfidence > 1 {
		cfg.MaxConfidence = def.MaxConfidence
	}
	if cfg.SaturationSamples <= 0 {
		cfg.SaturationSamples = def.SaturationSamples
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{
		store:  store,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "predictor")),
		now:    time.Now,
	}
}

// Confidence grows linearly with n until SaturationSamples, then stays at MaxConfidence
func (c Config) Confidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(c.MaxConfidence, float64(n)/float64(c.SaturationSamples))
}

// PredictCoords returns the centroid of the newest samples for elementType at
// the frame's resolution, or nil when there are none.
func (p *Predictor) PredictCoords(ctx context.Context, elementType string, f *frame.Frame) (*Prediction, error) {
	samples, err := p.store.Recent(ctx, elementType, f.Resolution(), p.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for %s: %w", elementType, err)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	var sumX, sumY float64
	for _, s := range samples {
		sumX += float64(s.Coords.X)
		sumY += float64(s.Coords.Y)
	}
	n := float64(len(samples))

	return &Prediction{
		Coords: frame.Point{
			X: int(math.Round(sumX / n)),
			Y: int(math.Round(sumY / n)),
		},
		Confidence: p.cfg.Confidence(len(samples)),
		Samples:    len(samples),
	}, nil
}

// RecordClick appends a sample for elementType at the frame's resolution
func (p *Predictor) RecordClick(ctx context.Context, elementType string, coords frame.Point, f *frame.Frame) error {
	if elementType == "" {
		return fmt.Errorf("element type is required")
	}
	if !f.Contains(coords) {
		return fmt.Errorf("coordinates (%d, %d) outside %s frame", coords.X, coords.Y, f.Resolution())
	}

	s := Sample{
		ID:          uuid.New().String(),
		ElementType: elementType,
		Coords:      coords,
		Resolution:  f.Resolution(),
		Timestamp:   p.now(),
	}
	if err := p.store.Append(ctx, s); err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}

	p.logger.Debug("sample recorded",
		zap.String("element_type", elementType),
		zap.String("resolution", s.Resolution.String()),
		zap.Int("x", coords.X), zap.Int("y", coords.Y))
	return nil
}

// Stats reports sample counts per key
func (p *Predictor) Stats(ctx context.Context) ([]KeyStats, error) {
	return p.store.Stats(ctx)
}
