package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamup/ui-locator/internal/config"
	"github.com/dreamup/ui-locator/internal/locator"
	"github.com/dreamup/ui-locator/internal/service"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := &config.Config{
		StorePath: filepath.Join(t.TempDir(), "training.db"),
		OCR:       config.OCRConfig{Engine: "none", MinConfidence: 60},
		Locator:   config.LocatorConfig{FieldLabelOffset: 30, AnalyzerConfidence: 0.6, TemplateConfidence: 0.4},
		Predictor: config.PredictorConfig{Window: 10, MaxConfidence: 0.95, SaturationSamples: 10},
	}
	svc, err := service.New(cfg, nil, service.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return &Handler{svc: svc, logger: svc.Logger}
}

func screenshot(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func intPtr(v int) *int { return &v }

func TestHandleRequest_RecordThenLocate(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t)
	img := screenshot(t)

	resp, err := h.HandleRequest(ctx, LambdaEvent{Action: ActionLocate, ImageBase64: img, ElementType: "login_button"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, locator.StrategyUnresolved, resp.Strategy)
	assert.NotEmpty(t, resp.Error)
	assert.NotEmpty(t, resp.ReportID)

	resp, err = h.HandleRequest(ctx, LambdaEvent{Action: ActionRecord, ImageBase64: img, ElementType: "login_button", X: intPtr(50), Y: intPtr(60)})
	require.NoError(t, err)
	assert.True(t, resp.Recorded)

	resp, err = h.HandleRequest(ctx, LambdaEvent{Action: ActionLocate, ImageBase64: img, ElementType: "login_button"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, locator.StrategyMLPredictor, resp.Strategy)
	require.NotNil(t, resp.Coords)
	assert.Equal(t, 50, resp.Coords.X)
	assert.Equal(t, 60, resp.Coords.Y)
}

func TestHandleRequest_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t)
	img := screenshot(t)

	for name, event := range map[string]LambdaEvent{
		"missing type":   {ImageBase64: img},
		"missing image":  {ElementType: "x"},
		"bad base64":     {ElementType: "x", ImageBase64: "%%%"},
		"not an image":   {ElementType: "x", ImageBase64: base64.StdEncoding.EncodeToString([]byte("hello"))},
		"record no x":    {Action: ActionRecord, ElementType: "x", ImageBase64: img},
		"unknown action": {Action: "delete", ElementType: "x", ImageBase64: img},
	} {
		resp, err := h.HandleRequest(ctx, event)
		assert.Error(t, err, name)
		assert.NotEmpty(t, resp.Error, name)
	}
}

func TestHandleRequest_RecordOutsideFrame(t *testing.T) {
	h := newHandler(t)
	resp, err := h.HandleRequest(context.Background(), LambdaEvent{
		Action: ActionRecord, ImageBase64: screenshot(t), ElementType: "x", X: intPtr(500), Y: intPtr(10),
	})
	require.NoError(t, err)
	assert.False(t, resp.Recorded)
	assert.False(t, resp.Success)
}
