package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./locator-training.db", cfg.StorePath)
	assert.Equal(t, "vision", cfg.OCR.Engine)
	assert.Equal(t, "sk-env", cfg.OCR.APIKey)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.Equal(t, 60.0, cfg.OCR.MinConfidence)
	assert.Equal(t, 30, cfg.Locator.FieldLabelOffset)
	assert.Equal(t, 0.6, cfg.Locator.AnalyzerConfidence)
	assert.Equal(t, 0.4, cfg.Locator.TemplateConfidence)
	assert.Equal(t, 10, cfg.Predictor.Window)
	assert.Equal(t, 0.95, cfg.Predictor.MaxConfidence)
	assert.Equal(t, 1280, cfg.Browser.Width)
	assert.Equal(t, 720, cfg.Browser.Height)
	assert.Equal(t, 512, cfg.Preflight.MinMemoryMB)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
store_path: /var/lib/locator/samples.db
ocr:
  engine: tesseract
  languages: [eng, deu]
predictor:
  window: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locator.yaml"), []byte(yaml), 0o644))
	t.Setenv("LOCATOR_LOCATOR_FIELD_LABEL_OFFSET", "42")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/locator/samples.db", cfg.StorePath)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, []string{"eng", "deu"}, cfg.OCR.Languages)
	assert.Equal(t, 5, cfg.Predictor.Window)
	assert.Equal(t, 42, cfg.Locator.FieldLabelOffset)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOCATOR_OCR_ENGINE", "paddle")

	_, err := Load("")
	assert.ErrorContains(t, err, "ocr.engine")
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("LOCATOR_TEST_A=base\nLOCATOR_TEST_B=base\n"), 0o644))
	require.NoError(t, os.WriteFile(".env.ci", []byte("LOCATOR_TEST_B=ci\n"), 0o644))
	t.Setenv("APP_ENV", "ci")
	t.Setenv("LOCATOR_TEST_A", "")
	t.Setenv("LOCATOR_TEST_B", "")
	os.Unsetenv("LOCATOR_TEST_A")
	os.Unsetenv("LOCATOR_TEST_B")

	require.NoError(t, LoadEnvFiles())
	assert.Equal(t, "base", os.Getenv("LOCATOR_TEST_A"))
	assert.Equal(t, "ci", os.Getenv("LOCATOR_TEST_B"))
}

func TestLoadEnvFiles_Missing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "prod")
	assert.NoError(t, LoadEnvFiles())
}
