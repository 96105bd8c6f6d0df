package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/0x30/webview-bridge-sub001/internal/api"
	"github.com/0x30/webview-bridge-sub001/internal/config"
	"github.com/0x30/webview-bridge-sub001/internal/pagehost"
	"github.com/0x30/webview-bridge-sub001/internal/transport/cdptransport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load bridge config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("bridge config loaded",
		"bind_addr", cfg.BindAddr,
		"mode", cfg.Mode,
		"root_url", cfg.RootURL,
		"default_timeout_ms", cfg.DefaultTimeoutMS,
		"module_policy", cfg.ModulePolicyPath,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	policy, err := config.LoadPolicy(cfg.ModulePolicyPath)
	if err != nil {
		slog.Error("failed to load module policy", "path", cfg.ModulePolicyPath, "error", err)
		os.Exit(1)
	}

	handlerTimeout := time.Duration(cfg.DefaultTimeoutMS) * time.Millisecond

	var handler http.Handler
	switch cfg.Mode {
	case "ws":
		host := pagehost.New(pagehost.ExternalDriver{}, cfg.RootURL, cfg.RootTitle)
		binder := newWSBinder(host, policy, handlerTimeout)
		router := chi.NewMux()
		router.HandleFunc("/bridge/ws", binder.serveWS)
		router.Mount("/", api.NewServer(host, func() api.Stats {
			return api.Stats{
				Pages:         len(host.Pages()),
				BoundChannels: binder.channelCount(),
				InFlight:      binder.inFlight(),
			}
		}))
		handler = router
	default:
		connector, err := cdptransport.Connect(context.Background(), cfg.CDPURL())
		if err != nil {
			slog.Error("failed to connect chromium devtools", "cdp_url", cfg.CDPURL(), "error", err)
			os.Exit(1)
		}
		defer connector.Close()

		driver := newCDPDriver(connector, policy, handlerTimeout)
		host := pagehost.New(driver, cfg.RootURL, cfg.RootTitle)
		driver.host = host
		if err := driver.OpenRoot(context.Background(), cfg.RootURL, host.RootID()); err != nil {
			slog.Error("failed to open root surface", "url", cfg.RootURL, "error", err)
			os.Exit(1)
		}

		handler = api.NewServer(host, func() api.Stats {
			return api.Stats{
				Pages:         len(host.Pages()),
				BoundChannels: driver.channelCount(),
				InFlight:      driver.inFlight(),
			}
		})
	}

	srv := &http.Server{Addr: cfg.BindAddr, Handler: handler}

	go func() {
		slog.Info("bridge host listening", "addr", cfg.BindAddr, "docs", "http://"+cfg.BindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("bridge server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("bridge shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
