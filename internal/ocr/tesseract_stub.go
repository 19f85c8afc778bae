//go:build !tesseract

package ocr

import "fmt"

// TesseractAvailable reports whether this binary was built with tesseract support
const TesseractAvailable = false

// NewTesseractEngine fails unless the binary is built with -tags tesseract
func NewTesseractEngine(languages []string) (Engine, error) {
	return nil, fmt.Errorf("tesseract support not compiled in (build with -tags tesseract)")
}
