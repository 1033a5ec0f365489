package main

import (
	"context"
	"log/slog"
	"time"

	"muxtunnel/internal/config"
	"muxtunnel/internal/projects"
	"muxtunnel/internal/workerutil"
)

// rescanInterval drives the periodic project rescan worker.
const rescanInterval = 5 * time.Minute

// Startup loads settings, starts every background worker and installs the
// tmux session-changed hook. Workers stop when Shutdown cancels their
// context.
func (a *App) Startup(ctx context.Context) {
	ctx, a.bgCancel = context.WithCancel(ctx)

	a.settings.OnReload(func(s config.Settings) {
		a.resolver.SetOptions(projects.Options{
			Strategy: s.Resolver,
			Ignore:   s.Projects.Ignore,
			MaxDepth: s.Projects.MaxDepth,
			Home:     a.home,
		})
	})
	a.settings.Load()

	workerutil.Run(ctx, "tmux-poll", &a.bgWG, a.adapter.Run, workerutil.Options{})
	workerutil.Run(ctx, "transcript-watch", &a.bgWG, a.watcher.Run, workerutil.Options{})
	workerutil.Run(ctx, "settings-watch", &a.bgWG, a.settings.Watch, workerutil.Options{})
	workerutil.Run(ctx, "project-rescan", &a.bgWG, a.rescanLoop, workerutil.Options{})

	if err := a.adapter.InstallSessionChangedHook(ctx, a.hookURL); err != nil {
		slog.Warn("[app] session-changed hook install failed", "error", err)
	}
}

// rescanLoop refreshes the project scan cache on a fixed period.
func (a *App) rescanLoop(ctx context.Context) {
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.resolver.Rescan()
		}
	}
}

// Shutdown tears the service down: uninstall the tmux hook, close every PTY
// client (reaping children), stop workers. Bounded by the caller's context.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.adapter.RemoveSessionChangedHook(ctx); err != nil {
		slog.Warn("[app] session-changed hook removal failed", "error", err)
	}

	a.connMu.Lock()
	for _, conn := range a.conns {
		conn.Terminate()
	}
	a.connMu.Unlock()
	a.ptys.CloseAll()

	if a.bgCancel != nil {
		a.bgCancel()
	}
	done := make(chan struct{})
	go func() {
		a.bgWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("[app] shutdown deadline hit before workers stopped")
	}
}
