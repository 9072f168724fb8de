package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/mediadata/internal/blobstore"
	"github.com/JonMunkholm/mediadata/internal/config"
	"github.com/JonMunkholm/mediadata/internal/core"
	"github.com/JonMunkholm/mediadata/internal/logging"
	"github.com/JonMunkholm/mediadata/internal/media"
	"github.com/JonMunkholm/mediadata/internal/portal"
	"github.com/JonMunkholm/mediadata/internal/provider"
	"github.com/JonMunkholm/mediadata/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())
	if cfg.Provider.APIKey == "" {
		slog.Warn("GOOGLE_API_KEY is not set; analyses will fail until it is configured")
	}

	ctx := context.Background()

	// The provider gate bounds model requests across all analyses and frames.
	gate := core.NewLimiter(cfg.Provider.MaxConcurrent, cfg.Server.AnalysisTimeout)
	gemini := provider.NewGemini(provider.Options{
		APIKey:          cfg.Provider.APIKey,
		BaseURL:         cfg.Provider.BaseURL,
		Model:           cfg.Provider.Model,
		Fallbacks:       cfg.Provider.Fallbacks,
		Temperature:     cfg.Provider.Temperature,
		MaxOutputTokens: cfg.Provider.MaxOutputTokens,
		MaxAttempts:     cfg.Provider.MaxAttempts,
		RetryDelay:      cfg.Provider.RetryDelay,
		Gate:            gate,
	})
	slog.Info("provider configured", "models", strings.Join(gemini.Models(), ","))

	// Blob storage
	var (
		blobs       blobstore.Store
		blobHandler http.Handler
	)
	switch strings.ToLower(cfg.Blob.Backend) {
	case "cloudinary":
		c, err := blobstore.NewCloudinary(blobstore.CloudinaryOptions{
			CloudName: cfg.Blob.CloudinaryCloudName,
			APIKey:    cfg.Blob.CloudinaryAPIKey,
			APISecret: cfg.Blob.CloudinaryAPISecret,
			Folder:    cfg.Blob.CloudinaryFolder,
		})
		if err != nil {
			slog.Error("failed to configure blob storage", "error", err)
			os.Exit(1)
		}
		blobs = c
	default:
		l, err := blobstore.NewLocal(cfg.Blob.Dir, "/blobs")
		if err != nil {
			slog.Error("failed to configure blob storage", "error", err)
			os.Exit(1)
		}
		blobs, blobHandler = l, l.Handler()
	}
	slog.Info("blob storage configured", "backend", cfg.Blob.Backend)

	// Portal sink: Postgres when configured, otherwise log only
	var sink portal.Sink = portal.LogSink{}
	if cfg.Portal.URL != "" {
		pg, err := portal.NewPostgresSink(ctx, portal.PoolConfig{
			URL:             cfg.Portal.URL,
			MaxConns:        cfg.Portal.MaxConns,
			MinConns:        cfg.Portal.MinConns,
			MaxConnLifetime: cfg.Portal.MaxConnLifetime,
			MaxConnIdleTime: cfg.Portal.MaxConnIdleTime,
		})
		if err != nil {
			slog.Error("failed to connect to portal database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		sink = pg
		slog.Info("portal sync writes to postgres")
	}

	core.AnalysisTimeout = cfg.Server.AnalysisTimeout

	service, err := core.NewService(core.Options{
		Provider:   gemini,
		Blobs:      blobs,
		Sampler:    media.NewFFmpegSampler(cfg.Media.FFmpegPath, cfg.Media.FFprobePath),
		Sink:       sink,
		Analyses:   core.NewLimiter(cfg.Analysis.MaxConcurrent, cfg.Analysis.MaxWaitTime),
		Gate:       gate,
		Sessions:   core.NewSessionStore(cfg.Session.TTL, cfg.Session.MaxSessions),
		BlobMaxAge: cfg.Blob.MaxAge,
		FrameCount: cfg.Media.FrameCount,
		Image: media.ImageOptions{
			MaxWidth: cfg.Media.ImageMaxWidth,
			Quality:  cfg.Media.ImageQuality,
			AutoCrop: cfg.Media.AutoCrop,
		},
		MaxFileBytes: cfg.Media.MaxFileSize,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg, blobHandler)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSessionJanitor(jobCtx, cfg.Session.CleanupInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for running analyses to complete (with timeout)
		if status := service.Status(); status.Analyses.Active > 0 {
			slog.Info("waiting for analyses to complete", "active", status.Analyses.Active)
			if err := service.WaitForAnalyses(shutdownCtx); err != nil {
				slog.Warn("analyses did not complete in time", "error", err)
			} else {
				slog.Info("all analyses completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
