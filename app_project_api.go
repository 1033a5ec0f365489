package main

import (
	"net/http"
	"strings"

	"muxtunnel/internal/projects"
)

func (a *App) handleProjectsList(w http.ResponseWriter, r *http.Request) {
	entries := a.resolver.List(r.Context(), r.URL.Query().Get("q"))
	if entries == nil {
		entries = []projects.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleProjectResolve maps a name to its best {name, path} candidate. A
// miss is a 404 so the auto-create flow can distinguish "unknown project"
// from errors.
func (a *App) handleProjectResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing name")
		return
	}
	entry := a.resolver.ResolveOne(r.Context(), req.Name)
	if entry == nil {
		writeError(w, http.StatusNotFound, "no project matches "+req.Name)
		return
	}
	a.resolver.RecordSelection(entry.Path)
	writeJSON(w, http.StatusOK, map[string]string{"name": entry.Name, "path": entry.Path})
}

// handleClaudeMarkViewed acknowledges a notification.
func (a *App) handleClaudeMarkViewed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	if !a.watcher.MarkViewed(req.ID) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (a *App) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.orders.Get())
}

func (a *App) handleOrderSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Order []string `json:"order"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	a.orders.Save(req.Order)
	writeJSON(w, http.StatusOK, map[string]any{})
}
