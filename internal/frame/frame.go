package frame

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Point is a pixel coordinate with origin at the top-left corner
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Resolution is the pixel size of a frame
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String renders the resolution as WIDTHxHEIGHT
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Frame is an immutable still image of the current screen or viewport.
// Nothing in this module writes to the underlying pixels.
type Frame struct {
	img image.Image
	// Label describes when or where the frame was captured (e.g. "initial", "file")
	Label string
	// Timestamp records when the frame was captured
	Timestamp time.Time

	encodeOnce sync.Once
	encoded    []byte
	encodeErr  error
}

// New wraps an already decoded image
func New(img image.Image, label string) *Frame {
	return &Frame{
		img:       img,
		Label:     label,
		Timestamp: time.Now(),
	}
}

// FromBytes decodes PNG or JPEG bytes into a frame. A copy of the original
// bytes is kept so PNG() can return them without re-encoding.
func FromBytes(data []byte, label string) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("frame data is empty")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	f := New(img, label)
	if format == "png" {
		f.encodeOnce.Do(func() {
			f.encoded = bytes.Clone(data)
		})
	}
	return f, nil
}

// Image returns the frame pixels. Callers must treat the image as read-only.
func (f *Frame) Image() image.Image {
	return f.img
}

// Width is the frame width in pixels
func (f *Frame) Width() int {
	return f.img.Bounds().Dx()
}

// Height is the frame height in pixels
func (f *Frame) Height() int {
	return f.img.Bounds().Dy()
}

// Resolution returns the frame size
func (f *Frame) Resolution() Resolution {
	return Resolution{Width: f.Width(), Height: f.Height()}
}

// Center returns the centre pixel of the frame
func (f *Frame) Center() Point {
	return Point{X: f.Width() / 2, Y: f.Height() / 2}
}

// Contains reports whether p lies inside the frame
func (f *Frame) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < f.Width() && p.Y < f.Height()
}

// PNG returns the frame encoded as PNG. Encoding happens at most once.
func (f *Frame) PNG() ([]byte, error) {
	f.encodeOnce.Do(func() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, f.img); err != nil {
			f.encodeErr = fmt.Errorf("failed to encode frame: %w", err)
			return
		}
		f.encoded = buf.Bytes()
	})
	return f.encoded, f.encodeErr
}

// SaveTo writes the frame as PNG into dir with a unique filename and returns the path
func (f *Frame) SaveTo(dir string) (string, error) {
	data, err := f.PNG()
	if err != nil {
		return "", err
	}

	label := f.Label
	if label == "" {
		label = "frame"
	}
	filename := fmt.Sprintf("frame_%s_%s_%s.png",
		label,
		f.Timestamp.Format("20060102_150405"),
		uuid.New().String()[:8],
	)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create frame directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save frame to %s: %w", path, err)
	}
	return path, nil
}

// Source supplies still images of the current screen.
// A nil frame with a nil error is treated as a capture failure by callers.
type Source interface {
	Capture(ctx context.Context) (*Frame, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func(ctx context.Context) (*Frame, error)

// Capture calls fn
func (fn SourceFunc) Capture(ctx context.Context) (*Frame, error) {
	return fn(ctx)
}
