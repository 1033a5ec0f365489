package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// handleStatic serves the browser UI from the static dir. Unknown non-dotted
// paths fall back to index.html so SPA routes like /acme deep-link. Path
// traversal is neutralized by stripping every ".." segment before joining.
func (a *App) handleStatic(w http.ResponseWriter, r *http.Request) {
	if a.staticDir == "" {
		writeError(w, http.StatusNotFound, "no static dir configured")
		return
	}

	rel := sanitizeRequestPath(r.URL.Path)
	path := filepath.Join(a.staticDir, rel)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}

	// Asset-looking misses (dotted final segment) are real 404s; everything
	// else is an SPA route.
	if strings.Contains(filepath.Base(rel), ".") {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(a.staticDir, "index.html"))
}

// sanitizeRequestPath converts a URL path into a safe relative file path:
// ".." segments are dropped entirely rather than resolved.
func sanitizeRequestPath(urlPath string) string {
	parts := strings.Split(urlPath, "/")
	clean := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		clean = append(clean, p)
	}
	return filepath.Join(clean...)
}
