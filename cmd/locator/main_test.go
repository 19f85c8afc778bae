package main

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamup/ui-locator/internal/db"
	"github.com/dreamup/ui-locator/internal/frame"
)

func writeScreenshot(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	path := filepath.Join(dir, "screen.png")
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(fh, img))
	require.NoError(t, fh.Close())
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestRecordThenLocate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LOCATOR_OCR_ENGINE", "none")
	t.Setenv("LOCATOR_LOG_LEVEL", "error")

	shot := writeScreenshot(t, dir)
	store := filepath.Join(dir, "training.db")

	err := run(t, "locate", "submit_button", "--store", store, "--image", shot)
	assert.ErrorContains(t, err, "submit_button not found")

	require.NoError(t, run(t, "record", "submit_button", "160", "150", "--store", store, "--image", shot))
	require.NoError(t, run(t, "locate", "submit_button", "--store", store, "--image", shot, "--report", filepath.Join(dir, "report.json")))
	assert.FileExists(t, filepath.Join(dir, "report.json"))

	assert.Error(t, run(t, "record", "submit_button", "999", "150", "--store", store, "--image", shot), "outside the frame")
	assert.Error(t, run(t, "record", "submit_button", "x", "1", "--store", store, "--image", shot))

	d, err := db.New(store)
	require.NoError(t, err)
	defer d.Close()
	samples, err := d.Recent(t.Context(), "submit_button", frame.Resolution{Width: 320, Height: 200}, 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, frame.Point{X: 160, Y: 150}, samples[0].Coords)
}

func TestLocateRequiresSource(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOCATOR_OCR_ENGINE", "none")
	assert.ErrorContains(t, run(t, "locate", "submit_button", "--image", "", "--url", ""), "--image, --url or --control-url")
}

func TestCompactAndExport(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LOCATOR_OCR_ENGINE", "none")
	store := filepath.Join(dir, "training.db")

	require.NoError(t, run(t, "stats", "--store", store))
	require.NoError(t, run(t, "compact", "--store", store, "--keep", "5"))
	assert.Error(t, run(t, "compact", "--store", store, "--keep", "0"))
	require.NoError(t, run(t, "export", filepath.Join(dir, "snap.db"), "--store", store))
	assert.FileExists(t, filepath.Join(dir, "snap.db"))
}
