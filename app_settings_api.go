package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// backgroundContentTypes maps image extensions to content types for the
// background asset route.
var backgroundContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

func (a *App) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	version, settings := a.settings.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  version,
		"settings": settings,
	})
}

// handleBackground streams the configured background image, content type by
// extension.
func (a *App) handleBackground(w http.ResponseWriter, r *http.Request) {
	_, settings := a.settings.Get()
	if settings.Background.Image == nil || *settings.Background.Image == "" {
		writeError(w, http.StatusNotFound, "no background configured")
		return
	}
	path := *settings.Background.Image
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "background file unavailable")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "background file unavailable")
		return
	}
	if ct, ok := backgroundContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"tmuxRunning": a.adapter.Running(r.Context()),
	})
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logRing == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, a.logRing.Entries())
}
