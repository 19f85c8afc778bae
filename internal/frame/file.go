package frame

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads a screenshot from disk on every capture
type FileSource struct {
	Path string
}

// NewFileSource creates a source backed by an image file
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Capture loads and decodes the file
func (s *FileSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %s: %w", s.Path, err)
	}
	return FromBytes(data, "file")
}
