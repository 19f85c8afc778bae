// Package service assembles a locator engine and its collaborators from
// configuration. Both the CLI and the Lambda handler build on it.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/analyzer"
	"github.com/dreamup/ui-locator/internal/config"
	"github.com/dreamup/ui-locator/internal/db"
	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/locator"
	"github.com/dreamup/ui-locator/internal/ocr"
	"github.com/dreamup/ui-locator/internal/predictor"
	"github.com/dreamup/ui-locator/internal/preflight"
	"github.com/dreamup/ui-locator/internal/reporter"
	"github.com/dreamup/ui-locator/internal/telemetry"
	"github.com/dreamup/ui-locator/internal/templatematch"
)

// Options are the runtime pieces that do not come from configuration
type Options struct {
	// Source captures frames; nil when every call supplies its own frame
	Source frame.Source
	// BrowserControlURL is checked by preflight when the source is a browser
	BrowserControlURL string
	// CheckBrowser adds the browser check to preflight
	CheckBrowser bool
	// HTTPClient is used by the network check
	HTTPClient *http.Client
}

// Service owns every long-lived component behind a locator engine
type Service struct {
	Config    *config.Config
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	Metrics   *telemetry.Metrics
	Store     *db.Database
	Predictor *predictor.Predictor
	Analyzer  *analyzer.Analyzer
	// OCR is nil when no engine is configured
	OCR *ocr.Locator
	// Templates is nil when no template images are configured
	Templates *templatematch.Matcher
	Checker   *preflight.Checker
	Engine    *locator.Engine

	ocrEngine ocr.Engine
	uploader  *reporter.S3Uploader
}

// New opens the training store and builds the engine
func New(cfg *config.Config, logger *zap.Logger, opts Options) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{Config: cfg, Logger: logger}

	s.Registry = prometheus.NewRegistry()
	s.Metrics = telemetry.New(s.Registry)

	store, err := db.New(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open training store: %w", err)
	}
	s.Store = store

	s.Predictor = predictor.New(store, predictor.Config{
		Window:            cfg.Predictor.Window,
		MaxConfidence:     cfg.Predictor.MaxConfidence,
		SaturationSamples: cfg.Predictor.SaturationSamples,
	}, logger)
	s.Analyzer = analyzer.New(analyzer.DefaultConfig(), logger)

	engine, err := ocr.NewEngine(ocr.EngineConfig{
		Kind:      cfg.OCR.Engine,
		APIKey:    cfg.OCR.APIKey,
		Model:     cfg.OCR.Model,
		Languages: cfg.OCR.Languages,
	})
	if err != nil {
		// OCR is optional; the engine runs without it
		logger.Warn("OCR engine unavailable", zap.String("engine", cfg.OCR.Engine), zap.Error(err))
	} else if engine != nil {
		s.ocrEngine = engine
		s.OCR = ocr.NewLocator(engine, logger)
	}

	if len(cfg.Templates) > 0 {
		matcher, err := templatematch.Load(cfg.Templates, templatematch.DefaultConfig(), logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		s.Templates = matcher
	}

	s.Checker = preflight.New(s.checks(opts), logger, s.Metrics)

	engineOpts := []locator.Option{
		locator.WithPredictor(s.Predictor),
		locator.WithAnalyzer(s.Analyzer),
		locator.WithHealthChecker(s.Checker),
		locator.WithLogger(logger),
		locator.WithMetrics(s.Metrics),
		locator.WithDebugDir(cfg.DebugDir),
		locator.WithConfig(locator.Config{
			FieldLabelOffset:   cfg.Locator.FieldLabelOffset,
			AnalyzerConfidence: cfg.Locator.AnalyzerConfidence,
			TemplateConfidence: cfg.Locator.TemplateConfidence,
			MinOCRConfidence:   cfg.OCR.MinConfidence,
		}),
	}
	if s.OCR != nil {
		engineOpts = append(engineOpts, locator.WithOCR(s.OCR))
	}
	s.Engine = locator.New(opts.Source, engineOpts...)

	logger.Debug("service ready",
		zap.String("store", store.Path()),
		zap.Any("capabilities", s.Engine.Capabilities()))
	return s, nil
}

func (s *Service) checks(opts Options) []preflight.Check {
	cfg := s.Config
	var checks []preflight.Check
	if cfg.Preflight.NetworkURL != "" {
		checks = append(checks, preflight.NetworkCheck(cfg.Preflight.NetworkURL, opts.HTTPClient))
	}
	if opts.CheckBrowser {
		checks = append(checks, preflight.BrowserCheck(opts.BrowserControlURL))
	}
	checks = append(checks,
		preflight.OCREngineCheck(s.ocrEngine),
		preflight.TemplatesCheck(s.templateCount()),
		preflight.ScreenResolutionCheck(opts.Source, cfg.Preflight.MinWidth, cfg.Preflight.MinHeight),
		preflight.MemoryCheck(cfg.Preflight.MinMemoryMB),
		preflight.TrainingStoreCheck(s.Store),
	)
	return checks
}

func (s *Service) templateCount() int {
	if s.Templates == nil {
		return 0
	}
	return s.Templates.Len()
}

// Request builds a locate request with the configured template fallback
func (s *Service) Request(elementType string, labels []string) locator.Request {
	req := locator.Request{ElementType: elementType, Labels: labels}
	if s.Templates != nil {
		req.Template = s.Templates.Fallback()
	}
	return req
}

// Locate runs a locate call and builds its report
func (s *Service) Locate(ctx context.Context, req locator.Request) (locator.Result, *reporter.Report) {
	rb := reporter.NewReportBuilder(req.ElementType)
	rb.SetLabels(req.Labels)

	res := s.Engine.Locate(ctx, req)
	rb.SetResult(res)
	report, err := rb.Build()
	if err != nil {
		s.Logger.Warn("failed to build report", zap.Error(err))
	}
	return res, report
}

// Uploader returns the S3 uploader, creating it on first use
func (s *Service) Uploader(ctx context.Context) (*reporter.S3Uploader, error) {
	if s.uploader != nil {
		return s.uploader, nil
	}
	if s.Config.S3.Bucket == "" {
		return nil, errors.New("s3.bucket is not configured")
	}
	u, err := reporter.NewS3Uploader(ctx, s.Config.S3.Bucket, s.Config.S3.Region, s.Logger)
	if err != nil {
		return nil, err
	}
	s.uploader = u
	return u, nil
}

// SetUploader replaces the S3 uploader
func (s *Service) SetUploader(u *reporter.S3Uploader) {
	s.uploader = u
}

// ArchiveIfUnresolved uploads the report and frame of an unresolved call. It
// returns an empty URL for resolved calls.
func (s *Service) ArchiveIfUnresolved(ctx context.Context, res locator.Result, report *reporter.Report) (string, error) {
	if res.Resolved() || report == nil {
		return "", nil
	}
	u, err := s.Uploader(ctx)
	if err != nil {
		return "", err
	}
	return u.ArchiveUnresolved(ctx, report, res.Frame)
}

// Export snapshots the training store to dest and uploads it when upload is set
func (s *Service) Export(ctx context.Context, dest string, upload bool) (string, error) {
	if err := s.Store.Snapshot(ctx, dest); err != nil {
		return "", err
	}
	if !upload {
		return "", nil
	}
	u, err := s.Uploader(ctx)
	if err != nil {
		return "", err
	}
	return u.UploadSnapshot(ctx, dest)
}

// Close flushes metrics and releases the store and OCR engine
func (s *Service) Close() error {
	var errs []error
	if err := s.Metrics.WriteFile(s.Config.MetricsFile); err != nil {
		errs = append(errs, err)
	}
	if closer, ok := s.ocrEngine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
