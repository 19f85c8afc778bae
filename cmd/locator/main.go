package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamup/ui-locator/internal/config"
	"github.com/dreamup/ui-locator/internal/logging"
	"github.com/dreamup/ui-locator/internal/service"
)

var (
	// Version information
	version = "0.1.0"

	// Global flags
	configFile  string
	storePath   string
	logLevel    string
	metricsFile string

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "locator",
	Short: "Locate UI elements in screenshots",
	Long: `locator finds where to click for a named UI element ("submit_button",
"email_field", ...) in a screenshot of a browser or app. It tries a learned
predictor, a pixel heuristic analyzer, OCR label matching and template images
in that order, and learns from every click that is confirmed to work.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./locator.yaml)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Training store path (overrides store_path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(locateCmd, recordCmd, preflightCmd, analyzeCmd, ocrCmd, statsCmd, compactCmd, exportCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if metricsFile != "" {
		cfg.MetricsFile = metricsFile
	}

	logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
	return err
}

// openService builds the engine for commands that need it
func openService(opts service.Options) (*service.Service, error) {
	svc, err := service.New(cfg, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise locator: %w", err)
	}
	return svc, nil
}

func closeService(svc *service.Service) {
	if err := svc.Close(); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// printJSON writes v to stdout indented
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
