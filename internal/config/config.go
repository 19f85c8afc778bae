// Package config loads locator settings from locator.yaml, .env files and
// LOCATOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	StorePath   string
	LogLevel    string
	LogFormat   string
	MetricsFile string
	DebugDir    string
	Templates   []string

	OCR       OCRConfig
	Locator   LocatorConfig
	Predictor PredictorConfig
	Browser   BrowserConfig
	Preflight PreflightConfig
	S3        S3Config
}

// OCRConfig selects the OCR engine
type OCRConfig struct {
	Engine        string
	Model         string
	APIKey        string
	Languages     []string
	MinConfidence float64
}

// LocatorConfig holds orchestrator constants
type LocatorConfig struct {
	FieldLabelOffset   int
	AnalyzerConfidence float64
	TemplateConfidence float64
}

// PredictorConfig tunes the learned predictor
type PredictorConfig struct {
	Window            int
	MaxConfidence     float64
	SaturationSamples int
}

// BrowserConfig configures the chromedp browser
type BrowserConfig struct {
	Headless   bool
	Width      int
	Height     int
	ControlURL string
}

// PreflightConfig sets health check thresholds
type PreflightConfig struct {
	NetworkURL  string
	MinWidth    int
	MinHeight   int
	MinMemoryMB int
}

// S3Config configures archival uploads
type S3Config struct {
	Bucket string
	Region string
}

// LoadEnvFiles loads .env then .env.<APP_ENV>, the latter overriding. Missing
// files are not an error.
func LoadEnvFiles() error {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if appEnv := os.Getenv("APP_ENV"); appEnv != "" {
		envFile := ".env." + appEnv
		if err := godotenv.Overload(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_path", "./locator-training.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_file", "")
	v.SetDefault("debug_dir", "")
	v.SetDefault("templates", []string{})

	v.SetDefault("ocr.engine", "vision")
	v.SetDefault("ocr.model", "gpt-4o-mini")
	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("ocr.min_confidence", 60.0)

	v.SetDefault("locator.field_label_offset", 30)
	v.SetDefault("locator.analyzer_confidence", 0.6)
	v.SetDefault("locator.template_confidence", 0.4)

	v.SetDefault("predictor.window", 10)
	v.SetDefault("predictor.max_confidence", 0.95)
	v.SetDefault("predictor.saturation_samples", 10)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("browser.control_url", "")

	v.SetDefault("preflight.network_url", "https://www.google.com")
	v.SetDefault("preflight.min_width", 800)
	v.SetDefault("preflight.min_height", 600)
	v.SetDefault("preflight.min_memory_mb", 512)

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
}

// Load reads configuration. configFile overrides the locator.yaml search when set.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("locator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.locator")
	}

	v.SetEnvPrefix("LOCATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		StorePath:   v.GetString("store_path"),
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		MetricsFile: v.GetString("metrics_file"),
		DebugDir:    v.GetString("debug_dir"),
		Templates:   v.GetStringSlice("templates"),
		OCR: OCRConfig{
			Engine:        v.GetString("ocr.engine"),
			Model:         v.GetString("ocr.model"),
			APIKey:        v.GetString("ocr.api_key"),
			Languages:     v.GetStringSlice("ocr.languages"),
			MinConfidence: v.GetFloat64("ocr.min_confidence"),
		},
		Locator: LocatorConfig{
			FieldLabelOffset:   v.GetInt("locator.field_label_offset"),
			AnalyzerConfidence: v.GetFloat64("locator.analyzer_confidence"),
			TemplateConfidence: v.GetFloat64("locator.template_confidence"),
		},
		Predictor: PredictorConfig{
			Window:            v.GetInt("predictor.window"),
			MaxConfidence:     v.GetFloat64("predictor.max_confidence"),
			SaturationSamples: v.GetInt("predictor.saturation_samples"),
		},
		Browser: BrowserConfig{
			Headless:   v.GetBool("browser.headless"),
			Width:      v.GetInt("browser.width"),
			Height:     v.GetInt("browser.height"),
			ControlURL: v.GetString("browser.control_url"),
		},
		Preflight: PreflightConfig{
			NetworkURL:  v.GetString("preflight.network_url"),
			MinWidth:    v.GetInt("preflight.min_width"),
			MinHeight:   v.GetInt("preflight.min_height"),
			MinMemoryMB: v.GetInt("preflight.min_memory_mb"),
		},
		S3: S3Config{
			Bucket: v.GetString("s3.bucket"),
			Region: v.GetString("s3.region"),
		},
	}

	// The OpenAI key is conventionally unprefixed
	if cfg.OCR.APIKey == "" {
		cfg.OCR.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a locate call
func (c *Config) Validate() error {
	switch c.OCR.Engine {
	case "vision", "tesseract", "none":
	default:
		return fmt.Errorf("ocr.engine must be vision, tesseract or none, got %q", c.OCR.Engine)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 100 {
		return fmt.Errorf("ocr.min_confidence must be within [0,100], got %v", c.OCR.MinConfidence)
	}
	for name, v := range map[string]float64{
		"locator.analyzer_confidence": c.Locator.AnalyzerConfidence,
		"locator.template_confidence": c.Locator.TemplateConfidence,
		"predictor.max_confidence":    c.Predictor.MaxConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if c.Predictor.Window < 1 || c.Predictor.SaturationSamples < 1 {
		return fmt.Errorf("predictor.window and predictor.saturation_samples must be positive")
	}
	if c.Browser.Width < 1 || c.Browser.Height < 1 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.Width, c.Browser.Height)
	}
	return nil
}
