// Package reporter builds diagnostic reports of locate calls and archives
// them, with their frames and training store snapshots, to S3.
package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/locator"
)

// Report describes one locate call
type Report struct {
	// ReportID is a unique identifier for this report
	ReportID string `json:"report_id"`
	// ElementType is what the caller asked for
	ElementType string `json:"element_type"`
	// Labels are the OCR labels supplied, in priority order
	Labels []string `json:"labels,omitempty"`
	// Timestamp is when the call started
	Timestamp time.Time `json:"timestamp"`
	// DurationMS is how long the call took
	DurationMS int64 `json:"duration_ms"`
	// Resolution of the frame the call ran against
	Resolution string `json:"resolution,omitempty"`
	// Outcome is the locate result
	Outcome Outcome `json:"outcome"`
	// Attempts is the per-strategy trace
	Attempts []locator.Attempt `json:"attempts"`
	// Evidence holds archived artifacts
	Evidence Evidence `json:"evidence"`
	// Summary provides a high-level overview
	Summary Summary `json:"summary"`
	// Metadata contains additional information
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Outcome is the serialisable part of a locator.Result
type Outcome struct {
	Strategy   string       `json:"strategy"`
	Coords     *frame.Point `json:"coords"`
	Confidence float64      `json:"confidence"`
	Error      string       `json:"error,omitempty"`
}

// Evidence points at archived artifacts
type Evidence struct {
	FrameFile  string `json:"frame_file,omitempty"`
	FrameS3URL string `json:"frame_s3_url,omitempty"`
}

// Summary provides a high-level overview
type Summary struct {
	// Status is resolved, resolved_low_confidence or unresolved
	Status string `json:"status"`
	// FailedStrategies lists strategies that errored
	FailedStrategies []string `json:"failed_strategies"`
}

// Report statuses
const (
	StatusResolved              = "resolved"
	StatusResolvedLowConfidence = "resolved_low_confidence"
	StatusUnresolved            = "unresolved"
)

// LowConfidence is the threshold below which a resolved call is flagged
const LowConfidence = 0.5

// ReportBuilder helps construct reports
type ReportBuilder struct {
	elementType string
	labels      []string
	startTime   time.Time
	result      *locator.Result
	metadata    map[string]string
}

// NewReportBuilder starts a report for elementType
func NewReportBuilder(elementType string) *ReportBuilder {
	return &ReportBuilder{
		elementType: elementType,
		startTime:   time.Now(),
		metadata:    make(map[string]string),
	}
}

// SetLabels records the OCR labels supplied
func (rb *ReportBuilder) SetLabels(labels []string) {
	rb.labels = labels
}

// SetResult records the locate result
func (rb *ReportBuilder) SetResult(res locator.Result) {
	rb.result = &res
}

// AddMetadata adds a key-value pair
func (rb *ReportBuilder) AddMetadata(key, value string) {
	rb.metadata[key] = value
}

// Build constructs the final report
func (rb *ReportBuilder) Build() (*Report, error) {
	if rb.result == nil {
		return nil, fmt.Errorf("report for %s has no result", rb.elementType)
	}
	res := rb.result

	outcome := Outcome{Strategy: res.Strategy, Coords: res.Coords, Confidence: res.Confidence}
	if msg, ok := res.Metadata["error"].(string); ok {
		outcome.Error = msg
	}
	resolution, _ := res.Metadata["resolution"].(string)
	attempts := res.Attempts()

	summary := Summary{Status: StatusUnresolved, FailedStrategies: make([]string, 0)}
	if res.Resolved() {
		summary.Status = StatusResolved
		if res.Confidence < LowConfidence {
			summary.Status = StatusResolvedLowConfidence
		}
	}
	for _, a := range attempts {
		if a.Outcome == locator.OutcomeError {
			summary.FailedStrategies = append(summary.FailedStrategies, a.Strategy)
		}
	}

	evidence := Evidence{}
	if path, ok := res.Metadata["debug_frame"].(string); ok {
		evidence.FrameFile = path
	}

	return &Report{
		ReportID:    uuid.New().String(),
		ElementType: rb.elementType,
		Labels:      rb.labels,
		Timestamp:   rb.startTime,
		DurationMS:  time.Since(rb.startTime).Milliseconds(),
		Resolution:  resolution,
		Outcome:     outcome,
		Attempts:    attempts,
		Evidence:    evidence,
		Summary:     summary,
		Metadata:    rb.metadata,
	}, nil
}

// JSON renders the report indented
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// SaveToFile saves the report to a JSON file
func (r *Report) SaveToFile(path string) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}
