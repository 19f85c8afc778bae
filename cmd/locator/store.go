package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamup/ui-locator/internal/db"
	"github.com/dreamup/ui-locator/internal/service"
)

var (
	keepPerKey   int
	exportUpload bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show training samples per element type and resolution",
	RunE:  runStats,
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Drop all but the newest samples per element type and resolution",
	RunE:  runCompact,
}

var exportCmd = &cobra.Command{
	Use:   "export DEST",
	Short: "Snapshot the training store to a file, optionally uploading it to S3",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	compactCmd.Flags().IntVar(&keepPerKey, "keep", 100, "Samples to keep per element type and resolution")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "Upload the snapshot to the configured S3 bucket")
}

func openStore() (*db.Database, error) {
	store, err := db.New(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open training store: %w", err)
	}
	return store, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	total, err := store.CountSamples(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"store": store.Path(), "total": total, "keys": stats})
}

func runCompact(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Compact(cmd.Context(), keepPerKey)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d samples, keeping at most %d per key\n", removed, keepPerKey)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	svc, err := openService(service.Options{})
	if err != nil {
		return err
	}
	defer closeService(svc)

	url, err := svc.Export(ctx, args[0], exportUpload)
	if err != nil {
		return err
	}
	fmt.Printf("snapshot written to %s\n", args[0])
	if url != "" {
		fmt.Printf("uploaded to %s\n", url)
	}
	return nil
}
