package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/bulk-downloader/internal/clock"
	"github.com/veranemoloko/bulk-downloader/internal/config"
	"github.com/veranemoloko/bulk-downloader/internal/report"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the progress recorded in the last checkpoint",
	RunE:  runProgress,
}

func runProgress(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	cp, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	out := cmd.OutOrStdout()
	if cp == nil {
		fmt.Fprintln(out, "No checkpoint found.")
		return nil
	}

	r := report.New(clock.Real{})
	fmt.Fprintln(out, r.Format(cp.Stats))
	fmt.Fprintf(out, "Completed keys: %d\n", len(store.CompletedKeys()))
	if !cp.LastSaved.IsZero() {
		fmt.Fprintf(out, "Last saved: %s\n", cp.LastSaved.Format(time.RFC3339))
	}
	return nil
}
