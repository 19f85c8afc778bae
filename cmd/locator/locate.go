package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/preflight"
	"github.com/dreamup/ui-locator/internal/service"
)

var (
	locateSource sourceFlags
	labels       []string
	noAnalyzer   bool
	click        bool
	upload       bool
	reportPath   string

	recordSource sourceFlags

	preflightSource sourceFlags
	preflightJSON   bool
)

func addSourceFlags(cmd *cobra.Command, f *sourceFlags) {
	cmd.Flags().StringVarP(&f.image, "image", "i", "", "Screenshot file to analyse")
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "Open this URL in a local headless browser")
	cmd.Flags().StringVar(&f.controlURL, "control-url", "", "Attach to a running browser's DevTools endpoint")
	cmd.Flags().IntVar(&f.maxWidth, "max-width", 0, "Downscale wider captures from --control-url to this width")
}

var locateCmd = &cobra.Command{
	Use:   "locate ELEMENT_TYPE",
	Short: "Find where to click for an element",
	Long: `Locate an element in the current screen. With --url and --click the element
is clicked in the browser and, when the click succeeds, the position is
recorded as a training sample.`,
	Args: cobra.ExactArgs(1),
	RunE: runLocate,
}

var recordCmd = &cobra.Command{
	Use:   "record ELEMENT_TYPE X Y",
	Short: "Record a confirmed click position as a training sample",
	Args:  cobra.ExactArgs(3),
	RunE:  runRecord,
}

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check that the environment can run locate calls",
	RunE:  runPreflight,
}

func init() {
	addSourceFlags(locateCmd, &locateSource)
	locateCmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "OCR label to look for (repeatable, in priority order)")
	locateCmd.Flags().BoolVar(&noAnalyzer, "no-analyzer", false, "Skip the heuristic analyzer")
	locateCmd.Flags().BoolVar(&click, "click", false, "Click the element and record the sample on success")
	locateCmd.Flags().BoolVar(&upload, "upload", false, "Archive unresolved calls to S3")
	locateCmd.Flags().StringVar(&reportPath, "report", "", "Save the call report to this file")

	addSourceFlags(recordCmd, &recordSource)

	addSourceFlags(preflightCmd, &preflightSource)
	preflightCmd.Flags().BoolVar(&preflightJSON, "json", false, "Print results as JSON")
}

func runLocate(cmd *cobra.Command, args []string) error {
	elementType := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	scr, err := openScreen(ctx, locateSource)
	if err != nil {
		return err
	}
	defer scr.close()
	if click && scr.clicker == nil {
		return fmt.Errorf("--click needs a browser (--url or --control-url)")
	}

	svc, err := openService(scr.opts)
	if err != nil {
		return err
	}
	defer closeService(svc)

	req := svc.Request(elementType, labels)
	req.DisableAnalyzer = noAnalyzer
	res, report := svc.Locate(ctx, req)

	if report != nil && reportPath != "" {
		if err := report.SaveToFile(reportPath); err != nil {
			return err
		}
	}

	if !res.Resolved() {
		if upload {
			url, err := svc.ArchiveIfUnresolved(ctx, res, report)
			if err != nil {
				logger.Warn("archive failed", zap.Error(err))
			} else {
				report.Metadata["archive_url"] = url
			}
		}
		if err := printJSON(report); err != nil {
			return err
		}
		return fmt.Errorf("%s not found", elementType)
	}

	if click {
		if err := scr.clicker.Click(ctx, *res.Coords); err != nil {
			return fmt.Errorf("click at %d,%d failed: %w", res.Coords.X, res.Coords.Y, err)
		}
		stored := svc.Engine.RecordSuccess(ctx, elementType, *res.Coords, res.Frame)
		report.Metadata["clicked"] = "true"
		report.Metadata["recorded"] = strconv.FormatBool(stored)
	}
	return printJSON(report)
}

func runRecord(cmd *cobra.Command, args []string) error {
	x, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid X %q: %w", args[1], err)
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid Y %q: %w", args[2], err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	scr, err := openScreen(ctx, recordSource)
	if err != nil {
		return err
	}
	defer scr.close()

	svc, err := openService(scr.opts)
	if err != nil {
		return err
	}
	defer closeService(svc)

	if !svc.Engine.RecordSuccess(ctx, args[0], frame.Point{X: x, Y: y}, nil) {
		return fmt.Errorf("sample for %s was not stored; see log", args[0])
	}
	fmt.Printf("recorded %s at %d,%d\n", args[0], x, y)
	return nil
}

func runPreflight(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	opts := service.Options{CheckBrowser: true}
	if preflightSource != (sourceFlags{}) || cfg.Browser.ControlURL != "" {
		scr, err := openScreen(ctx, preflightSource)
		if err != nil {
			return err
		}
		defer scr.close()
		opts = scr.opts
	}

	svc, err := openService(opts)
	if err != nil {
		return err
	}
	defer closeService(svc)

	results := svc.Engine.RunPreflight(ctx)
	if preflightJSON {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		fmt.Print(preflight.Summarize(results))
	}

	if fatal := preflight.FatalFailures(results); len(fatal) > 0 {
		return fmt.Errorf("fatal checks failed: %v", fatal)
	}
	return nil
}
