package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"muxtunnel/internal/tmux"
)

// maxBodyBytes bounds RPC request bodies.
const maxBodyBytes = 64 * 1024

// sessionNamePattern is the allowed shape of a session name. Reserved route
// segments are rejected separately.
var sessionNamePattern = regexp.MustCompile(`^[^/?#]+$`)

// reservedNames are path segments the SPA router owns; sessions may not
// shadow them.
var reservedNames = map[string]struct{}{
	"api": {}, "ws": {}, "assets": {},
}

func validSessionName(name string) bool {
	if name == "" || name == "." || name == ".." || !sessionNamePattern.MatchString(name) {
		return false
	}
	_, reserved := reservedNames[name]
	return !reserved
}

// writeJSON responds with a JSON body. Encoding failures are logged; headers
// are already out at that point.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("[app] response encode failed", "error", err)
	}
}

// writeError responds with the RPC error shape.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeOpError maps adapter errors to HTTP: missing targets are 404,
// everything else 500 with the CLI message.
func writeOpError(w http.ResponseWriter, err error) {
	if errors.Is(err, tmux.ErrPaneNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// decodeBody parses a bounded JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// allowCORS is permissive: the service is single-tenant on localhost.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
