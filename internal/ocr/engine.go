package ocr

import "fmt"

// Engine kinds accepted by NewEngine
const (
	EngineVision    = "vision"
	EngineTesseract = "tesseract"
	EngineNone      = "none"
)

// EngineConfig selects and configures an OCR engine
type EngineConfig struct {
	Kind      string
	APIKey    string
	Model     string
	Languages []string
}

// NewEngine builds the configured engine. EngineNone returns a nil engine and
// no error: OCR is simply not available.
func NewEngine(cfg EngineConfig) (Engine, error) {
	switch cfg.Kind {
	case EngineNone, "":
		return nil, nil
	case EngineVision:
		engine, err := NewOpenAIVisionEngine(cfg.APIKey, cfg.Model, cfg.Languages)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case EngineTesseract:
		return NewTesseractEngine(cfg.Languages)
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Kind)
	}
}
