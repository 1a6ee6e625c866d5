package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/voxmeet/signal-relay/internal/config"
	"github.com/voxmeet/signal-relay/internal/httpserver"
	"github.com/voxmeet/signal-relay/internal/metrics"
	"github.com/voxmeet/signal-relay/internal/registry"
	"github.com/voxmeet/signal-relay/internal/signaling"
	"github.com/voxmeet/signal-relay/internal/translate"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting signal-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"translation_provider", cfg.TranslationProvider,
		"default_target_language", cfg.DefaultTargetLanguage,
		"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
		"max_signaling_messages_per_second", cfg.MaxSignalingMessagesPerSecond,
		"allowed_origins", len(cfg.AllowedOrigins),
	)

	if len(cfg.AllowedOrigins) == 0 {
		logger.Warn("no allowed origins configured; browser cross-origin requests will be rejected")
	}

	translator, err := newTranslator(cfg)
	if err != nil {
		logger.Error("failed to configure translation provider", "err", err)
		os.Exit(2)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, built := resolveBuildInfo(buildCommit, buildTime)
	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: built})

	hub := signaling.NewHub(logger)
	relay := signaling.NewRelay(signaling.Config{
		Logger:                logger,
		Registry:              registry.New(),
		Transport:             hub,
		Translator:            translator,
		DefaultTargetLanguage: cfg.DefaultTargetLanguage,
	})
	ws := signaling.NewWebSocketServer(signaling.WebSocketConfig{
		Logger:               logger,
		Relay:                relay,
		Hub:                  hub,
		AllowedOrigins:       cfg.AllowedOrigins,
		MaxMessageBytes:      cfg.MaxSignalingMessageBytes,
		MaxMessagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
	})
	srv.Mux().Handle("GET /ws", ws)

	// Expose internal counters in Prometheus' text format.
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(relay.Metrics()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func newTranslator(cfg config.Config) (translate.Translator, error) {
	client := &http.Client{Timeout: cfg.TranslateTimeout}

	switch cfg.TranslationProvider {
	case config.TranslationProviderGoogle:
		return translate.NewGoogle(translate.GoogleConfig{
			APIKey:     cfg.GoogleTranslateAPIKey,
			HTTPClient: client,
		})
	case config.TranslationProviderAzure:
		return translate.NewAzure(translate.AzureConfig{
			Key:        cfg.AzureTranslatorKey,
			Region:     cfg.AzureTranslatorRegion,
			Endpoint:   cfg.AzureTranslatorEndpoint,
			HTTPClient: client,
		})
	default:
		return translate.Noop{}, nil
	}
}

func resolveBuildInfo(commit, built string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the Go
	// build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if built == "" {
					built = s.Value
				}
			}
		}
	}

	return commit, built
}
