package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamup/ui-locator/internal/analyzer"
	"github.com/dreamup/ui-locator/internal/ocr"
)

// commandTimeout bounds a single command
const commandTimeout = 2 * time.Minute

var (
	analyzeSource sourceFlags

	ocrSource sourceFlags
	ocrFind   []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify the page and list clickable element candidates",
	RunE:  runAnalyze,
}

var ocrCmd = &cobra.Command{
	Use:   "ocr",
	Short: "Extract text from the screen, or find a label with --find",
	RunE:  runOCR,
}

func init() {
	addSourceFlags(analyzeCmd, &analyzeSource)
	addSourceFlags(ocrCmd, &ocrSource)
	ocrCmd.Flags().StringSliceVar(&ocrFind, "find", nil, "Labels to find, in priority order")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	scr, err := openScreen(ctx, analyzeSource)
	if err != nil {
		return err
	}
	defer scr.close()

	f, err := scr.source.Capture(ctx)
	if err != nil {
		return err
	}

	a := analyzer.New(analyzer.DefaultConfig(), logger)
	return printJSON(map[string]any{
		"resolution": f.Resolution().String(),
		"page":       a.DetectPageType(f),
		"candidates": a.FindClickableElements(f),
	})
}

func runOCR(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	engine, err := ocr.NewEngine(ocr.EngineConfig{
		Kind:      cfg.OCR.Engine,
		APIKey:    cfg.OCR.APIKey,
		Model:     cfg.OCR.Model,
		Languages: cfg.OCR.Languages,
	})
	if err != nil {
		return err
	}
	if engine == nil {
		return errors.New("no OCR engine configured (ocr.engine is none)")
	}

	scr, err := openScreen(ctx, ocrSource)
	if err != nil {
		return err
	}
	defer scr.close()

	f, err := scr.source.Capture(ctx)
	if err != nil {
		return err
	}

	loc := ocr.NewLocator(engine, logger)
	if len(ocrFind) > 0 {
		match, err := loc.FindAny(ctx, f, ocrFind, cfg.OCR.MinConfidence)
		if err != nil {
			return err
		}
		if match == nil {
			return errors.New("none of the labels were found")
		}
		return printJSON(match)
	}

	matches, err := loc.ExtractText(ctx, f, cfg.OCR.MinConfidence)
	if err != nil {
		return err
	}
	return printJSON(matches)
}
