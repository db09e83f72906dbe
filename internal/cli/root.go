// Package cli implements the downloader command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/bulk-downloader/internal/config"
	"github.com/veranemoloko/bulk-downloader/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:          "downloader",
	Short:        "Resumable bulk file downloader",
	Long:         `downloader fetches large lists of files with bounded concurrency, retries, corruption detection and checkpointed resume.`,
	SilenceUsage: true,
}

// Execute is the entry point called from cmd/downloader/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore builds the progress store selected by cfg. The returned close
// function releases any connection the store holds.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.ProgressStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis progress store", "prefix", cfg.RedisPrefix)
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}
		return repository.NewRedisProgressStore(client, cfg.RedisPrefix), closeFn, nil
	case config.StoreFile:
		logger.Info("using file progress store", "path", cfg.CheckpointFile)
		return repository.NewFileProgressStore(cfg.CheckpointFile), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %q", cfg.StoreBackend)
	}
}
