package preflight

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/ocr"
	"github.com/dreamup/ui-locator/internal/templatematch"
)

// Check names
const (
	CheckNetwork          = "network"
	CheckBrowser          = "browser"
	CheckOCREngine        = "ocr_engine"
	CheckScreenResolution = "screen_resolution"
	CheckMemory           = "memory"
	CheckTrainingStore    = "training_store"
	CheckTemplates        = "templates"
)

// NetworkCheck requests url and passes on any non-5xx response
func NetworkCheck(url string, client *http.Client) Check {
	if client == nil {
		client = http.DefaultClient
	}
	return NewCheck(CheckNetwork, SeverityFatal, func(ctx context.Context) Result {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fail(fmt.Sprintf("invalid URL: %v", err), nil)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fail(fmt.Sprintf("unreachable: %v", err), map[string]any{"url": url})
		}
		defer resp.Body.Close()

		meta := map[string]any{"url": url, "status": resp.StatusCode}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fail(fmt.Sprintf("server error %d", resp.StatusCode), meta)
		}
		return pass("connectivity OK", meta)
	})
}

// BrowserCheck passes when a DevTools endpoint answers at controlURL or,
// without one, when a Chromium binary can be found locally.
func BrowserCheck(controlURL string) Check {
	return NewCheck(CheckBrowser, SeverityFatal, func(ctx context.Context) Result {
		if controlURL != "" {
			ws, err := launcher.ResolveURL(controlURL)
			if err != nil {
				return fail(fmt.Sprintf("devtools endpoint unavailable: %v", err), map[string]any{"control_url": controlURL})
			}
			return pass("devtools endpoint reachable", map[string]any{"websocket_url": ws})
		}

		path, found := launcher.LookPath()
		if !found {
			return fail("no Chromium binary found", nil)
		}
		return pass("browser binary found", map[string]any{"path": path})
	})
}

// OCREngineCheck reports whether an OCR engine is configured
func OCREngineCheck(engine ocr.Engine) Check {
	return NewCheck(CheckOCREngine, SeverityAdvisory, func(ctx context.Context) Result {
		if engine == nil {
			return fail("no OCR engine configured; label matching disabled",
				map[string]any{"tesseract_available": ocr.TesseractAvailable})
		}
		return pass("OCR available", map[string]any{
			"engine":              engine.Name(),
			"tesseract_available": ocr.TesseractAvailable,
		})
	})
}

// TemplatesCheck reports whether template images are loaded and which
// matcher backend this binary uses
func TemplatesCheck(loaded int) Check {
	return NewCheck(CheckTemplates, SeverityAdvisory, func(ctx context.Context) Result {
		meta := map[string]any{"templates": loaded, "backend": templatematch.Backend}
		if loaded == 0 {
			return fail("no template images configured; template fallback disabled", meta)
		}
		return pass(fmt.Sprintf("%d templates loaded", loaded), meta)
	})
}

// ScreenResolutionCheck captures a frame and requires at least minWidth x minHeight
func ScreenResolutionCheck(source frame.Source, minWidth, minHeight int) Check {
	return NewCheck(CheckScreenResolution, SeverityFatal, func(ctx context.Context) Result {
		if source == nil {
			return fail("no screenshot source configured", nil)
		}
		f, err := source.Capture(ctx)
		if err != nil {
			return fail(fmt.Sprintf("capture failed: %v", err), nil)
		}
		if f == nil {
			return fail("capture returned no frame", nil)
		}

		meta := map[string]any{"width": f.Width(), "height": f.Height()}
		if f.Width() < minWidth || f.Height() < minHeight {
			return fail(fmt.Sprintf("%s below minimum %dx%d", f.Resolution(), minWidth, minHeight), meta)
		}
		return pass(f.Resolution().String(), meta)
	})
}

// MemoryCheck requires minMB of available system memory
func MemoryCheck(minMB int) Check {
	return NewCheck(CheckMemory, SeverityAdvisory, func(ctx context.Context) Result {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return fail(fmt.Sprintf("cannot read memory stats: %v", err), nil)
		}

		availableMB := vm.Available / (1024 * 1024)
		meta := map[string]any{
			"available_mb": availableMB,
			"total_mb":     vm.Total / (1024 * 1024),
			"used_percent": vm.UsedPercent,
		}
		if availableMB < uint64(max(minMB, 0)) {
			return fail(fmt.Sprintf("%d MB available, need %d MB", availableMB, minMB), meta)
		}
		return pass(fmt.Sprintf("%d MB available", availableMB), meta)
	})
}

// Pinger is satisfied by the training store
type Pinger interface {
	Ping(ctx context.Context) error
}

// TrainingStoreCheck verifies the training store answers
func TrainingStoreCheck(store Pinger) Check {
	return NewCheck(CheckTrainingStore, SeverityFatal, func(ctx context.Context) Result {
		if store == nil {
			return fail("no training store configured", nil)
		}
		if err := store.Ping(ctx); err != nil {
			return fail(fmt.Sprintf("store unavailable: %v", err), nil)
		}
		return pass("store reachable", nil)
	})
}
