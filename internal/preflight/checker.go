// Package preflight verifies the environment is ready before a batch of
// locate calls begins.
package preflight

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/telemetry"
)

// Severity says whether a failed check should stop automation
type Severity string

const (
	// SeverityFatal failures mean locate calls cannot succeed
	SeverityFatal Severity = "fatal"
	// SeverityAdvisory failures degrade results but do not block
	SeverityAdvisory Severity = "advisory"
)

// Result is the outcome of one named check
type Result struct {
	Passed   bool           `json:"passed"`
	Message  string         `json:"message"`
	Severity Severity       `json:"severity"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Check is one environment diagnostic
type Check interface {
	Name() string
	Severity() Severity
	Run(ctx context.Context) Result
}

type funcCheck struct {
	name     string
	severity Severity
	fn       func(ctx context.Context) Result
}

func (c funcCheck) Name() string                   { return c.name }
func (c funcCheck) Severity() Severity             { return c.severity }
func (c funcCheck) Run(ctx context.Context) Result { return c.fn(ctx) }

// NewCheck wraps fn as a Check
func NewCheck(name string, severity Severity, fn func(ctx context.Context) Result) Check {
	return funcCheck{name: name, severity: severity, fn: fn}
}

func pass(msg string, meta map[string]any) Result {
	return Result{Passed: true, Message: msg, Meta: meta}
}

func fail(msg string, meta map[string]any) Result {
	return Result{Passed: false, Message: msg, Meta: meta}
}

// Checker runs a fixed set of checks
type Checker struct {
	checks  []Check
	timeout time.Duration
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// New creates a checker. metrics may be nil.
func New(checks []Check, logger *zap.Logger, metrics *telemetry.Metrics) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		checks:  checks,
		timeout: 15 * time.Second,
		logger:  logger.With(zap.String("component", "preflight")),
		metrics: metrics,
	}
}

// WithTimeout sets the per-check deadline
func (c *Checker) WithTimeout(d time.Duration) *Checker {
	c.timeout = d
	return c
}

// RunChecks runs every check in order and keys the results by check name
func (c *Checker) RunChecks(ctx context.Context) map[string]Result {
	results := make(map[string]Result, len(c.checks))
	for _, check := range c.checks {
		start := time.Now()
		res := c.run(ctx, check)
		res.Severity = check.Severity()
		results[check.Name()] = res

		fields := []zap.Field{
			zap.String("check", check.Name()),
			zap.String("severity", string(res.Severity)),
			zap.Duration("duration", time.Since(start)),
			zap.String("message", res.Message),
		}
		switch {
		case res.Passed:
			c.logger.Debug("check passed", fields...)
		case res.Severity == SeverityFatal:
			c.metrics.PreflightFailure(check.Name())
			c.logger.Warn("check failed", fields...)
		default:
			c.metrics.PreflightFailure(check.Name())
			c.logger.Info("advisory check failed", fields...)
		}
	}
	return results
}

func (c *Checker) run(ctx context.Context, check Check) (res Result) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Sprintf("check panicked: %v", r), nil)
		}
	}()
	return check.Run(ctx)
}

// AllPassed is true iff every result passed
func AllPassed(results map[string]Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// FatalFailures lists failed fatal checks, sorted by name
func FatalFailures(results map[string]Result) []string {
	var names []string
	for name, r := range results {
		if !r.Passed && r.Severity == SeverityFatal {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Summarize renders one line per check, sorted by name, after a header
func Summarize(results map[string]Result) string {
	names := make([]string, 0, len(results))
	passed := 0
	for name, r := range results {
		names = append(names, name)
		if r.Passed {
			passed++
		}
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Preflight: %d/%d checks passed\n", passed, len(results))
	for _, name := range names {
		r := results[name]
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			if r.Severity == SeverityAdvisory {
				status = "WARN"
			}
		}
		fmt.Fprintf(&b, "  [%s] %s: %s\n", status, name, r.Message)
	}
	return b.String()
}
