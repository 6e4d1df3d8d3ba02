package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vidfetch/vidfetch-bot/internal/bot"
	"github.com/vidfetch/vidfetch-bot/internal/compress"
	"github.com/vidfetch/vidfetch-bot/internal/config"
	"github.com/vidfetch/vidfetch-bot/internal/extract"
	"github.com/vidfetch/vidfetch-bot/internal/fetch"
	"github.com/vidfetch/vidfetch-bot/internal/guard"
	"github.com/vidfetch/vidfetch-bot/internal/health"
	"github.com/vidfetch/vidfetch-bot/internal/platform"
	"github.com/vidfetch/vidfetch-bot/internal/ratelimit"
	"github.com/vidfetch/vidfetch-bot/internal/stats"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			fmt.Fprintln(os.Stderr, "BOT_TOKEN is not set; create a bot with @BotFather and export its token")
		} else {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		}
		os.Exit(1)
	}

	setupLogging(cfg)
	log.Info().Str("version", version).Msg("vidfetch-bot starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := platform.CreateDirectoryIfNotExists(cfg.TempDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.TempDir).Msg("failed to ensure temp dir")
	}

	if err := extract.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to provision the extraction engine")
	}
	if !compress.Available() {
		log.Warn().Msg("ffmpeg not found; oversize files will be rejected instead of compressed")
	}

	go health.Serve(ctx, cfg.HealthAddr)
	go tempJanitor(ctx, cfg.TempDir, cfg.TempMaxAge)

	transport, err := bot.NewTelegramTransport(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Telegram")
	}
	log.Info().Str("username", transport.Username()).Msg("authorized")

	tracker := stats.NewTracker()
	orchestrator := fetch.NewOrchestrator(
		ratelimit.NewGate(cfg.RateLimit, cfg.RateWindow),
		guard.NewGuard(),
		extract.NewService(cfg.TempDir),
		compress.NewService(),
		tracker,
		cfg.MaxFileSize,
		cfg.MaxDownloadSize,
		cfg.Timeout,
	)

	adapter := bot.NewAdapter(transport, cfg.MaxFileSize, cfg.RateLimit, cfg.RateWindow, orchestrator.RetryAfter)
	router := bot.NewRouter(transport, orchestrator, tracker, adapter, cfg.MaxFileSize, cfg.MaxDownloadSize)

	router.Run(ctx, transport.Updates())

	transport.StopUpdates()
	log.Info().Msg("vidfetch-bot stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// tempJanitor sweeps stale files out of the temp dir. A crashed fetch can
// leave partial downloads behind; the sweep keeps the disk bounded.
func tempJanitor(ctx context.Context, dir string, maxAge time.Duration) {
	ticker := time.NewTicker(maxAge / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := platform.CleanupOldFiles(dir, maxAge); removed > 0 {
				log.Info().Int("removed", removed).Str("dir", dir).Msg("cleaned stale temp files")
			}
		}
	}
}
