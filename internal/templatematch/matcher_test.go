package templatematch

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamup/ui-locator/internal/frame"
)

func noise(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func crop(img *image.RGBA, r image.Rectangle) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

func TestFind_ExactCrop(t *testing.T) {
	src := noise(200, 100, 1)
	m := New([]Template{{Name: "button.png", Image: crop(src, image.Rect(120, 40, 150, 60))}}, DefaultConfig(), nil)

	match, err := m.Find(context.Background(), frame.New(src, "test"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "button.png", match.Template)
	assert.Equal(t, frame.Point{X: 135, Y: 50}, match.Center)
	assert.InDelta(t, 1.0, match.Score, 1e-6)
}

func TestFind_Downscaled(t *testing.T) {
	src := noise(400, 200, 2)
	cfg := DefaultConfig()
	cfg.MaxWidth = 200
	m := New([]Template{{Name: "tpl", Image: crop(src, image.Rect(200, 100, 240, 130))}}, cfg, nil)

	match, err := m.Find(context.Background(), frame.New(src, "test"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.InDelta(t, 220, match.Center.X, 2)
	assert.InDelta(t, 115, match.Center.Y, 2)
}

func TestFind_NoMatch(t *testing.T) {
	src := noise(120, 80, 3)
	other := noise(20, 20, 99)
	m := New([]Template{{Name: "other", Image: other}}, DefaultConfig(), nil)

	match, err := m.Find(context.Background(), frame.New(src, "test"))
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFind_SkipsUnusableTemplates(t *testing.T) {
	src := noise(50, 50, 4)
	flatTpl := image.NewRGBA(image.Rect(0, 0, 10, 10))
	big := noise(80, 80, 5)
	m := New([]Template{{Name: "flat", Image: flatTpl}, {Name: "big", Image: big}}, DefaultConfig(), nil)

	match, err := m.Find(context.Background(), frame.New(src, "test"))
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFind_Cancelled(t *testing.T) {
	src := noise(50, 50, 6)
	m := New([]Template{{Name: "tpl", Image: crop(src, image.Rect(0, 0, 10, 10))}}, DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Find(ctx, frame.New(src, "test"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadAndFallback(t *testing.T) {
	src := noise(100, 60, 7)
	path := filepath.Join(t.TempDir(), "submit.png")
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(fh, crop(src, image.Rect(10, 10, 30, 25))))
	require.NoError(t, fh.Close())

	m, err := Load([]string{path}, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	p, err := m.Fallback()(context.Background(), frame.New(src, "test"))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, frame.Point{X: 20, Y: 17}, *p)

	_, err = Load([]string{filepath.Join(t.TempDir(), "missing.png")}, DefaultConfig(), nil)
	assert.Error(t, err)
}
