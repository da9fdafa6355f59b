package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go-opencv-motion-log/internal/config"
	"go-opencv-motion-log/internal/detector"
	"go-opencv-motion-log/internal/eventlog"
	"go-opencv-motion-log/internal/status"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "motionlog",
	Short: "Watch a webcam and serve a log of recent motion",
	Long: `motionlog compares successive webcam frames, keeps the most recent
motion events in memory and serves them as a self-refreshing page.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, slog.Default())
	},
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("motionlog: exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	events := eventlog.New(cfg.Capacity)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: status.LogRequests(logger,
			status.NewHandler(events, os.DirFS(cfg.AssetDir), logger),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// detector failures stay in this goroutine so the page keeps serving
	g.Go(func() error {
		watch(gctx, cfg, events, logger)
		return nil
	})

	g.Go(func() error {
		logger.Info("motionlog: serving", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("motionlog: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("motionlog: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func watch(ctx context.Context, cfg config.Config, events *eventlog.Log, logger *slog.Logger) {
	webcam, err := detector.OpenCamera(cfg.Device, cfg.FrameRate)
	if err != nil {
		logger.Error("motionlog: detection disabled, serving last known log", "error", err)
		return
	}

	d, err := detector.New(webcam, events, cfg.Detector(), detector.WithLogger(logger))
	if err != nil {
		webcam.Close()
		logger.Error("motionlog: detection disabled", "error", err)
		return
	}

	switch err := d.Run(ctx); {
	case err == nil:
	case detector.IsStreamEnd(err):
		logger.Warn("motionlog: capture ended, event log is frozen", "error", err)
	default:
		logger.Error("motionlog: detection stopped", "error", err)
	}
}
