package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/reelbot/internal/delivery"
	"github.com/user/reelbot/internal/gateway"
	"github.com/user/reelbot/internal/store"
	"github.com/user/reelbot/internal/sweeper"
	"github.com/user/reelbot/internal/telegram"
	"github.com/user/reelbot/internal/types"
	"github.com/user/reelbot/internal/webhook"
	"github.com/user/reelbot/pkg/videogen"
	"github.com/user/reelbot/pkg/videogen/grok"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reelbot daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "reelbot.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Video store
	videos, err := store.NewVideoStore(filepath.Join(cfg.DataDir, "videos"))
	if err != nil {
		return fmt.Errorf("create video store: %w", err)
	}

	// Generation client
	gen := grok.New(&videogen.Config{
		BaseURL:        cfg.Video.BaseURL,
		APIKey:         cfg.Video.APIKey,
		Model:          cfg.Video.Model,
		TimeoutSeconds: cfg.Video.TimeoutSeconds,
	})

	// Delivery registry
	deliveryReg := delivery.NewRegistry()

	// Gateway
	gw, err := gateway.New(gen, gateway.Options{
		Enabled:          cfg.Video.Enabled,
		MaxConcurrent:    int64(cfg.MaxConcurrent),
		GroupMode:        cfg.Groups.Mode,
		GroupList:        cfg.Groups.List,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateWindow:       time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		RateMaxCalls:     cfg.RateLimit.MaxCalls,
		MaxPromptTokens:  cfg.Video.MaxPromptTokens,
		Model:            cfg.Video.Model,
		Download:         cfg.Video.Download,
		KeepLocal:        cfg.Video.KeepLocal,
		Videos:           videos,
		Delivery:         deliveryReg,
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	gw.SetRetryAttempts(cfg.Video.MaxRetryAttempts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("reelbot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"model", cfg.Video.Model,
		"video_enabled", cfg.Video.Enabled,
		"pid_file", pidPath,
	)

	// Retention sweeper
	if cfg.Video.RetentionHours > 0 {
		sweep := sweeper.New(videos, time.Duration(cfg.Video.RetentionHours)*time.Hour)
		if err := sweep.Start(); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		defer sweep.Stop()
		slog.Info("retention sweeper started", "retention_hours", cfg.Video.RetentionHours)
	}

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, videos, telegram.Diagnostics{
			Enabled:        cfg.Video.Enabled,
			KeyConfigured:  cfg.Video.APIKey != "",
			BaseURL:        cfg.Video.BaseURL,
			Model:          cfg.Video.Model,
			TimeoutSeconds: cfg.Video.TimeoutSeconds,
			RetryAttempts:  cfg.Video.MaxRetryAttempts,
			StorageDir:     videos.Dir(),
		}, cfg.Admins)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		adapter.RegisterDelivery(deliveryReg)
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Webhook HTTP server
	if cfg.HTTP.Enabled {
		submit := func(ctx context.Context, req *types.GenerationRequest, onResult func(*gateway.Result)) error {
			return gw.Submit(ctx, req, gateway.WithOnResult(onResult))
		}
		webhookSrv := webhook.NewServer(submit, videos)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: webhookSrv,
		}
		go func() {
			slog.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("webhook server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
