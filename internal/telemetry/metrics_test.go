package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLocate("ocr", 20*time.Millisecond)
	m.ObserveLocate("ocr", 30*time.Millisecond)
	m.ObserveLocate("unresolved", time.Second)
	m.StrategyError("advanced_analyzer")
	m.TrainingSample("stored")
	m.PreflightFailure("network")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.locateTotal.WithLabelValues("ocr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.locateTotal.WithLabelValues("unresolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategyErrors.WithLabelValues("advanced_analyzer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trainingSamples.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.preflightFailures.WithLabelValues("network")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.locateDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveLocate("ocr", time.Second)
	m.StrategyError("ocr")
	m.TrainingSample("failed")
	m.PreflightFailure("memory")
	assert.NoError(t, m.WriteFile("/nonexistent/metrics.prom"))
}

func TestWriteFile(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveLocate("template", time.Millisecond)

	path := filepath.Join(t.TempDir(), "locator.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `locator_locate_total{strategy="template"} 1`)
}
