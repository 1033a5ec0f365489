package main

import (
	"context"
	"net/http"
	"sync"

	"muxtunnel/internal/claude"
	"muxtunnel/internal/config"
	"muxtunnel/internal/order"
	"muxtunnel/internal/projects"
	"muxtunnel/internal/sessionlog"
	"muxtunnel/internal/terminal"
	"muxtunnel/internal/tmux"
	"muxtunnel/internal/wsserver"
)

// App is the gateway service: it terminates the RPC surface, the pane
// stream, and the static/hook routes, and owns the process-wide stores.
type App struct {
	home      string
	configDir string
	staticDir string
	// hookURL is the absolute session-changed endpoint installed as a tmux
	// hook at startup.
	hookURL string

	settings *config.Store
	orders   *order.Store
	resolver *projects.Resolver
	watcher  *claude.Watcher
	adapter  *tmux.Adapter
	ptys     *terminal.Manager
	logRing  *sessionlog.Ring

	// conns maps PTY client id -> stream connection. A lookup table for the
	// session-changed hook, not ownership; entries are cleared when the
	// stream ends.
	connMu sync.Mutex
	conns  map[string]*wsserver.Conn

	// inputHistory keeps recent panes.input payloads for the UI recall
	// feature.
	inputMu      sync.Mutex
	inputHistory inputRing

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// Options configures NewApp.
type Options struct {
	Home      string
	ConfigDir string
	StaticDir string
	HookURL   string
	LogRing   *sessionlog.Ring
}

// NewApp wires the service graph. Nothing starts until Startup.
func NewApp(opts Options) *App {
	watcher := claude.NewWatcher(opts.Home)
	return &App{
		home:      opts.Home,
		configDir: opts.ConfigDir,
		staticDir: opts.StaticDir,
		hookURL:   opts.HookURL,
		settings:  config.NewStore(opts.ConfigDir),
		orders:    order.NewStore(opts.ConfigDir),
		resolver:  projects.NewResolver(opts.ConfigDir, projects.Options{Home: opts.Home}),
		watcher:   watcher,
		adapter:   tmux.NewAdapter(watcher),
		ptys:      terminal.NewManager(),
		logRing:   opts.LogRing,
		conns:     make(map[string]*wsserver.Conn),
	}
}

// Routes assembles the HTTP surface.
func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/sessions", a.handleSessionsList)
	mux.HandleFunc("POST /api/sessions", a.handleSessionCreate)
	mux.HandleFunc("DELETE /api/sessions/{name}", a.handleSessionDelete)

	mux.HandleFunc("DELETE /api/panes/{target}", a.handlePaneDelete)
	mux.HandleFunc("POST /api/panes/input", a.handlePaneInput)
	mux.HandleFunc("POST /api/panes/interrupt", a.handlePaneInterrupt)

	mux.HandleFunc("GET /api/projects", a.handleProjectsList)
	mux.HandleFunc("POST /api/projects/resolve", a.handleProjectResolve)
	mux.HandleFunc("POST /api/claude/viewed", a.handleClaudeMarkViewed)

	mux.HandleFunc("GET /api/session-order", a.handleOrderGet)
	mux.HandleFunc("POST /api/session-order", a.handleOrderSave)

	mux.HandleFunc("GET /api/settings", a.handleSettingsGet)
	mux.HandleFunc("GET /api/settings/background", a.handleBackground)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/input-history", a.handleInputHistory)
	mux.HandleFunc("GET /api/logs", a.handleLogs)

	mux.HandleFunc("GET /api/internal/session-changed", a.handleSessionChangedHook)
	mux.HandleFunc("GET /ws", a.handleStream)

	mux.HandleFunc("/", a.handleStatic)

	return allowCORS(mux)
}
