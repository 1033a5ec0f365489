package main

import (
	"net/http"
	"strings"

	"muxtunnel/internal/tmux"
)

// handleSessionsList returns the latest snapshot with the user's sidebar
// ordering applied.
func (a *App) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	sessions := a.adapter.Latest(r.Context())

	names := make([]string, len(sessions))
	byName := make(map[string]tmux.Session, len(sessions))
	for i, s := range sessions {
		names[i] = s.Name
		byName[s.Name] = s
	}
	ordered := make([]tmux.Session, 0, len(sessions))
	for _, name := range a.orders.Apply(names) {
		ordered = append(ordered, byName[name])
	}
	writeJSON(w, http.StatusOK, ordered)
}

// handleSessionCreate starts a detached session. When cwd is omitted the
// name is resolved through the project resolver, which also records the
// selection.
func (a *App) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Cwd  string `json:"cwd"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if !validSessionName(req.Name) {
		writeError(w, http.StatusBadRequest, "invalid session name")
		return
	}
	cwd := req.Cwd
	if cwd == "" {
		if entry := a.resolver.ResolveOne(r.Context(), req.Name); entry != nil {
			cwd = entry.Path
			a.resolver.RecordSelection(entry.Path)
		}
	}
	if err := a.adapter.CreateSession(r.Context(), req.Name, cwd); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (a *App) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !validSessionName(name) {
		writeError(w, http.StatusBadRequest, "invalid session name")
		return
	}
	if err := a.adapter.KillSession(r.Context(), name); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (a *App) handlePaneDelete(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}
	if err := a.adapter.KillPane(r.Context(), target); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// handlePaneInput types literal text into a pane followed by Enter, and
// records it in the input history ring.
func (a *App) handlePaneInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
		Text   string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}
	if err := a.adapter.SendKeys(r.Context(), req.Target, req.Text, true); err != nil {
		writeOpError(w, err)
		return
	}
	a.recordInput(req.Target, req.Text)
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (a *App) handlePaneInterrupt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}
	if err := a.adapter.SendInterrupt(r.Context(), req.Target); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}
