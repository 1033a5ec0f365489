package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"muxtunnel/internal/sessionlog"
)

const (
	defaultPort = "3002"
	defaultHost = "localhost"

	// configDirName is the hidden state directory under the user home.
	configDirName = ".muxtunnel"

	// shutdownGrace bounds graceful teardown after SIGINT/SIGTERM.
	shutdownGrace = 5 * time.Second
)

func main() {
	logRing := sessionlog.NewRing()
	setupLogging(logRing)

	home, err := os.UserHomeDir()
	if err != nil {
		slog.Error("[main] cannot resolve user home", "error", err)
		os.Exit(1)
	}

	host := envOr("HOST", defaultHost)
	port := envOr("PORT", defaultPort)
	addr := net.JoinHostPort(host, port)

	app := NewApp(Options{
		Home:      home,
		ConfigDir: filepath.Join(home, configDirName),
		StaticDir: os.Getenv("STATIC_DIR"),
		HookURL:   fmt.Sprintf("http://%s/api/internal/session-changed", addr),
		LogRing:   logRing,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Startup(ctx)

	server := &http.Server{
		Addr:    addr,
		Handler: app.Routes(),
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()
	slog.Info("[main] muxtunnel listening", "addr", addr)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[main] server failed", "error", err)
		}
	}

	slog.Info("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[main] http shutdown", "error", err)
	}
	app.Shutdown(shutdownCtx)
}

// setupLogging installs the text handler at the level named by MUXTUNNEL_LOG,
// teeing Warn+ records into the log ring for the UI.
func setupLogging(ring *sessionlog.Ring) {
	level := slog.LevelInfo
	switch os.Getenv("MUXTUNNEL_LOG") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(sessionlog.NewHandler(base, slog.LevelWarn, ring)))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
