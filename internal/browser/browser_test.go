package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
)

func TestClick_RejectsOutOfViewport(t *testing.T) {
	m := &Manager{opts: DefaultOptions(), logger: zap.NewNop()}
	c := m.Clicker()

	assert.Error(t, c.Click(context.Background(), frame.Point{X: -1, Y: 10}))
	assert.Error(t, c.Click(context.Background(), frame.Point{X: 1280, Y: 10}))
	assert.Error(t, c.Click(context.Background(), frame.Point{X: 10, Y: 720}))
}

func TestNewManager_InvalidViewport(t *testing.T) {
	_, err := NewManager(Options{Width: 0, Height: 720}, nil)
	assert.Error(t, err)
}

func TestConnectRod_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := ConnectRod(RodOptions{ControlURL: srv.URL}, nil)
	assert.Error(t, err)
}

func TestToViewport(t *testing.T) {
	p := frame.Point{X: 640, Y: 360}
	assert.Equal(t, p, toViewport(p, 1))
	assert.Equal(t, p, toViewport(p, 0))
	assert.Equal(t, frame.Point{X: 960, Y: 540}, toViewport(p, 2.0/3.0))
	assert.Equal(t, frame.Point{X: 1280, Y: 720}, toViewport(p, 0.5))
}

// Launches a real Chromium; opt in with LOCATOR_BROWSER_TESTS=1
func TestManager_CaptureAndClick(t *testing.T) {
	if os.Getenv("LOCATOR_BROWSER_TESTS") != "1" {
		t.Skip("set LOCATOR_BROWSER_TESTS=1 to run browser tests")
	}

	m, err := NewManager(Options{Headless: true, Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Navigate(ctx, `data:text/html,<button style="position:absolute;left:100px;top:100px">Go</button>`))

	f, err := m.Source().Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame.Resolution{Width: 800, Height: 600}, f.Resolution())

	assert.NoError(t, m.Clicker().Click(ctx, frame.Point{X: 110, Y: 110}))
}
