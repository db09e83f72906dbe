package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	api "github.com/veranemoloko/bulk-downloader/internal/api/http"
	"github.com/veranemoloko/bulk-downloader/internal/clock"
	"github.com/veranemoloko/bulk-downloader/internal/config"
	"github.com/veranemoloko/bulk-downloader/internal/service"
	"github.com/veranemoloko/bulk-downloader/internal/storage"
	"github.com/veranemoloko/bulk-downloader/internal/tasklist"
	"github.com/veranemoloko/bulk-downloader/internal/validation"
	"github.com/veranemoloko/bulk-downloader/internal/worker"
)

const shutdownTimeout = 5 * time.Second

var (
	tasksPath   string
	concurrency int
	jsonOutput  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download every task in a task list",
	RunE:  runDownload,
}

func init() {
	runCmd.Flags().StringVar(&tasksPath, "tasks", "", "task list file (.json, .yaml or .yml)")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum parallel downloads (default from BD_CONCURRENCY)")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "print final statistics as JSON")
	_ = runCmd.MarkFlagRequired("tasks")
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg)

	tasks, err := tasklist.Load(tasksPath, cfg.DownloadDir)
	if err != nil {
		return err
	}
	logger.Info("task list loaded", "path", tasksPath, "tasks", len(tasks))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	clk := clock.Real{}
	files := storage.NewFileStorage(cfg.DownloadDir)
	fetcher := worker.NewHTTPFetcher(files, cfg.FetcherConfig(), clk, logger)

	orch := service.NewOrchestrator(fetcher, store, files,
		service.WithConcurrency(cfg.Concurrency),
		service.WithDispatchDelay(cfg.DispatchDelay),
		service.WithCheckpointEvery(cfg.CheckpointEvery),
		service.WithErrorListCap(cfg.ErrorListCap),
		service.WithRetry(cfg.RetryConfig()),
		service.WithBreaker(cfg.BreakerConfig()),
		service.WithClassifier(cfg.ClassifierConfig()),
		service.WithValidator(validation.New(cfg.BlockPrivateHosts)),
		service.WithClock(clk),
		service.WithLogger(logger),
	)

	if cfg.StatusAddr != "" {
		server := startStatusServer(cfg.StatusAddr, orch, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("status server shutdown failed", "error", err)
			}
		}()
	}

	stats, runErr := orch.Run(ctx, tasks, concurrency)
	if runErr != nil {
		logger.Warn("run interrupted", "error", runErr)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return fmt.Errorf("encode statistics: %w", err)
		}
	} else {
		fmt.Fprintln(out, orch.Reporter().FormatFinal(stats))
	}

	return runErr
}

func startStatusServer(addr string, source api.StatusSource, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(source, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("status server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", "error", err)
		}
	}()

	return server
}
