package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"muxtunnel/internal/sessionlog"
)

// newTestApp builds an App over isolated temp dirs without starting workers
// or installing hooks.
func newTestApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	home := t.TempDir()
	app := NewApp(Options{
		Home:      home,
		ConfigDir: filepath.Join(home, configDirName),
		StaticDir: "",
		HookURL:   "http://localhost:0/api/internal/session-changed",
		LogRing:   sessionlog.NewRing(),
	})
	app.settings.Load()
	srv := httptest.NewServer(app.Routes())
	t.Cleanup(srv.Close)
	return app, srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSettingsEndpoint(t *testing.T) {
	_, srv := newTestApp(t)

	var body struct {
		Version  uint64 `json:"version"`
		Settings struct {
			Resolver string `json:"resolver"`
		} `json:"settings"`
	}
	resp := getJSON(t, srv.URL+"/api/settings", &body)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body.Version == 0 {
		t.Fatal("version must start at 1")
	}
	if body.Settings.Resolver != "projects" {
		t.Fatalf("resolver = %q", body.Settings.Resolver)
	}
}

func TestSessionOrderRoundTrip(t *testing.T) {
	_, srv := newTestApp(t)

	resp := postJSON(t, srv.URL+"/api/session-order", map[string]any{"order": []string{"b", "a"}})
	if resp.StatusCode != 200 {
		t.Fatalf("save status = %d", resp.StatusCode)
	}

	var order []string
	getJSON(t, srv.URL+"/api/session-order", &order)
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("order = %v", order)
	}
}

func TestProjectResolveAndList(t *testing.T) {
	app, srv := newTestApp(t)
	if err := os.MkdirAll(filepath.Join(app.home, "code", "acme", ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	var resolved map[string]string
	resp := postJSON(t, srv.URL+"/api/projects/resolve", map[string]string{"name": "acme"})
	if resp.StatusCode != 200 {
		t.Fatalf("resolve status = %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&resolved); err != nil {
		t.Fatal(err)
	}
	if resolved["name"] != "acme" || resolved["path"] != filepath.Join(app.home, "code", "acme") {
		t.Fatalf("resolved = %v", resolved)
	}

	var entries []map[string]any
	getJSON(t, srv.URL+"/api/projects?q=acme", &entries)
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}

	miss := postJSON(t, srv.URL+"/api/projects/resolve", map[string]string{"name": "nope"})
	if miss.StatusCode != 404 {
		t.Fatalf("miss status = %d, want 404", miss.StatusCode)
	}
}

func TestClaudeMarkViewedUnknown(t *testing.T) {
	_, srv := newTestApp(t)
	resp := postJSON(t, srv.URL+"/api/claude/viewed", map[string]string{"id": "ghost"})
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionCreateRejectsBadNames(t *testing.T) {
	_, srv := newTestApp(t)
	for _, name := range []string{"", "a/b", "api", "what?"} {
		resp := postJSON(t, srv.URL+"/api/sessions", map[string]string{"name": name})
		if resp.StatusCode != 400 {
			t.Errorf("create %q status = %d, want 400", name, resp.StatusCode)
		}
	}
}

func TestMalformedBodyIs400(t *testing.T) {
	_, srv := newTestApp(t)
	resp, err := http.Post(srv.URL+"/api/panes/input", "application/json", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestInputHistoryEndpoint(t *testing.T) {
	app, srv := newTestApp(t)
	app.recordInput("main:0.0", "make test")

	var entries []map[string]any
	getJSON(t, srv.URL+"/api/input-history", &entries)
	if len(entries) != 1 || entries[0]["target"] != "main:0.0" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestHealthShape(t *testing.T) {
	_, srv := newTestApp(t)
	var body map[string]any
	resp := getJSON(t, srv.URL+"/api/health", &body)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["tmuxRunning"]; !ok {
		t.Fatal("tmuxRunning missing")
	}
}

func TestLogsEndpoint(t *testing.T) {
	app, srv := newTestApp(t)
	app.logRing.Append(time.Now(), slog.LevelWarn, "something happened")

	var entries []map[string]any
	getJSON(t, srv.URL+"/api/logs", &entries)
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, srv := newTestApp(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/sessions", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("CORS header missing")
	}
}

func TestSessionChangedHookValidation(t *testing.T) {
	_, srv := newTestApp(t)
	resp, err := http.Get(srv.URL + "/api/internal/session-changed?pid=abc&session=x")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	// Unknown but well-formed pid: acknowledged quietly.
	resp2, err := http.Get(srv.URL + "/api/internal/session-changed?pid=999999&session=x")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp2.StatusCode)
	}
}
