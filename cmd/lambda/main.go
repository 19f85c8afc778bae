package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/config"
	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/locator"
	"github.com/dreamup/ui-locator/internal/logging"
	"github.com/dreamup/ui-locator/internal/reporter"
	"github.com/dreamup/ui-locator/internal/service"
)

// Event actions
const (
	ActionLocate = "locate"
	ActionRecord = "record"
)

// LambdaEvent represents the input event for Lambda
type LambdaEvent struct {
	// Action is locate or record
	Action string `json:"action"`
	// ImageBase64 is the PNG or JPEG screenshot
	ImageBase64 string `json:"image_base64"`
	// ElementType names the element, e.g. submit_button
	ElementType string `json:"element_type"`
	// Labels are OCR labels in priority order (locate only)
	Labels []string `json:"labels,omitempty"`
	// DisableAnalyzer skips the heuristic analyzer (locate only)
	DisableAnalyzer bool `json:"disable_analyzer,omitempty"`
	// X and Y are the confirmed click position (record only)
	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`
	// UploadUnresolved archives the frame and report of unresolved calls
	UploadUnresolved bool `json:"upload_unresolved,omitempty"`
}

// LambdaResponse represents the Lambda function output
type LambdaResponse struct {
	Success    bool         `json:"success"`
	Action     string       `json:"action"`
	Strategy   string       `json:"strategy,omitempty"`
	Coords     *frame.Point `json:"coords,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	// Recorded is set by record
	Recorded bool `json:"recorded,omitempty"`
	// ReportID identifies the locate report
	ReportID string `json:"report_id,omitempty"`
	// ReportURL is the S3 URL of an archived report
	ReportURL string            `json:"report_url,omitempty"`
	Summary   *reporter.Summary `json:"summary,omitempty"`
	Attempts  []locator.Attempt `json:"attempts,omitempty"`
	Error     string            `json:"error,omitempty"`
	// Duration in seconds
	Duration float64 `json:"duration_seconds,omitempty"`
}

// Handler serves locate and record events against one warm service
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// HandleRequest is the Lambda handler function
func (h *Handler) HandleRequest(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	startTime := time.Now()

	// Validate input
	if event.ElementType == "" {
		return LambdaResponse{Action: event.Action, Error: "element_type is required"}, fmt.Errorf("missing element_type")
	}
	if event.ImageBase64 == "" {
		return LambdaResponse{Action: event.Action, Error: "image_base64 is required"}, fmt.Errorf("missing image_base64")
	}
	data, err := base64.StdEncoding.DecodeString(event.ImageBase64)
	if err != nil {
		return LambdaResponse{Action: event.Action, Error: "image_base64 is not valid base64"}, fmt.Errorf("invalid image_base64: %w", err)
	}
	f, err := frame.FromBytes(data, "lambda")
	if err != nil {
		return LambdaResponse{Action: event.Action, Error: err.Error()}, err
	}

	var response LambdaResponse
	switch event.Action {
	case ActionLocate, "":
		response = h.locate(ctx, event, f)
	case ActionRecord:
		if event.X == nil || event.Y == nil {
			return LambdaResponse{Action: event.Action, Error: "x and y are required"}, fmt.Errorf("missing coordinates")
		}
		p := frame.Point{X: *event.X, Y: *event.Y}
		response = LambdaResponse{Action: ActionRecord}
		response.Recorded = h.svc.Engine.RecordSuccess(ctx, event.ElementType, p, f)
		response.Success = response.Recorded
		if !response.Recorded {
			response.Error = "sample was not stored"
		}
	default:
		return LambdaResponse{Action: event.Action, Error: "action must be locate or record"}, fmt.Errorf("unknown action %q", event.Action)
	}

	response.Duration = time.Since(startTime).Seconds()
	return response, nil
}

func (h *Handler) locate(ctx context.Context, event LambdaEvent, f *frame.Frame) LambdaResponse {
	req := h.svc.Request(event.ElementType, event.Labels)
	req.DisableAnalyzer = event.DisableAnalyzer
	req.Frame = f

	res, report := h.svc.Locate(ctx, req)
	response := LambdaResponse{
		Success:    res.Resolved(),
		Action:     ActionLocate,
		Strategy:   res.Strategy,
		Coords:     res.Coords,
		Confidence: res.Confidence,
		Attempts:   res.Attempts(),
	}
	if report != nil {
		report.Metadata["lambda_region"] = os.Getenv("AWS_REGION")
		response.ReportID = report.ReportID
		response.Summary = &report.Summary
	}
	if msg, ok := res.Metadata["error"].(string); ok {
		response.Error = msg
	}

	if !res.Resolved() && event.UploadUnresolved {
		url, err := h.svc.ArchiveIfUnresolved(ctx, res, report)
		if err != nil {
			// Non-fatal
			h.logger.Warn("S3 upload failed", zap.Error(err))
		} else {
			response.ReportURL = url
		}
	}
	return response
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.S3.Bucket == "" {
		cfg.S3.Bucket = os.Getenv("S3_BUCKET_NAME")
	}

	logger, err := logging.New(cfg.LogLevel, "json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	svc, err := service.New(cfg, logger, service.Options{})
	if err != nil {
		logger.Fatal("failed to initialise locator", zap.Error(err))
	}
	defer svc.Close()

	h := &Handler{svc: svc, logger: logger.With(zap.String("component", "lambda"))}
	lambda.Start(h.HandleRequest)
}
