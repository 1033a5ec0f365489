package config

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	hjson "github.com/hjson/hjson-go/v4"
)

const (
	settingsFile = "settings.json"
	defaultsFile = "defaults.jsonc"

	// reloadDebounce coalesces editor write bursts (truncate+write+rename)
	// into one reload.
	reloadDebounce = 300 * time.Millisecond

	maxSettingsFileBytes = 1 << 20
)

// Settings is the typed settings record consumers read.
type Settings struct {
	Resolver   string             `json:"resolver"`
	Projects   ProjectsSettings   `json:"projects"`
	Background BackgroundSettings `json:"background"`
	Terminal   TerminalSettings   `json:"terminal"`
	Window     WindowSettings     `json:"window"`
}

type ProjectsSettings struct {
	Ignore   []string `json:"ignore"`
	MaxDepth int      `json:"maxDepth"`
}

type BackgroundSettings struct {
	Image   *string `json:"image"`
	Size    string  `json:"size"`
	Opacity float64 `json:"opacity"`
	Filter  *string `json:"filter"`
}

type TerminalSettings struct {
	FontSize   int    `json:"fontSize"`
	FontFamily string `json:"fontFamily"`
}

type WindowSettings struct {
	Padding int `json:"padding"`
}

// Store loads, versions and hot-reloads the settings record.
type Store struct {
	dir string

	mu       sync.RWMutex
	settings Settings
	version  uint64
	onReload []func(Settings)
}

// NewStore creates a store rooted at dir (the muxtunnel config directory).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load performs the startup sequence: ensure the config dir exists,
// regenerate defaults.jsonc, and apply user overrides over the schema
// defaults. Never fails hard; unreadable overrides fall back to defaults.
func (s *Store) Load() {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		slog.Warn("[config] config dir create failed", "dir", s.dir, "error", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, defaultsFile), []byte(renderDefaultsJSONC()), 0o644); err != nil {
		slog.Warn("[config] defaults.jsonc write failed", "error", err)
	}
	s.reload()
}

// Get returns the current version and a copy of the settings record.
// Consumers compare versions to detect reloads.
func (s *Store) Get() (uint64, Settings) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, s.settings
}

// OnReload registers a callback invoked with the new record after every
// reload, including the initial Load. Register before Load.
func (s *Store) OnReload(fn func(Settings)) {
	s.mu.Lock()
	s.onReload = append(s.onReload, fn)
	s.mu.Unlock()
}

// reload re-reads overrides, rebuilds the record and bumps the version.
func (s *Store) reload() {
	settings := s.build()

	s.mu.Lock()
	s.settings = settings
	s.version++
	callbacks := make([]func(Settings), len(s.onReload))
	copy(callbacks, s.onReload)
	version := s.version
	s.mu.Unlock()

	slog.Info("[config] settings loaded", "version", version)
	for _, fn := range callbacks {
		fn(settings)
	}
}

// build merges user overrides over schema defaults into the typed record.
func (s *Store) build() Settings {
	tree := defaultTree()

	overrides, err := s.readOverrides()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("[config] settings.json unreadable, using defaults", "error", err)
	}
	for key, value := range overrides {
		field, known := fieldByKey[key]
		if !known {
			slog.Debug("[config] ignoring unknown setting", "key", key)
			continue
		}
		coerced, ok := coerce(field, value)
		if !ok {
			slog.Warn("[config] ignoring mistyped setting", "key", key)
			continue
		}
		setPath(tree, key, coerced)
	}

	// The tree is plain maps; round-trip through JSON to the typed record.
	var settings Settings
	raw, err := json.Marshal(tree)
	if err == nil {
		err = json.Unmarshal(raw, &settings)
	}
	if err != nil {
		slog.Error("[config] settings decode failed, using zero defaults", "error", err)
	}
	return settings
}

// readOverrides parses settings.json into flat dot-notation keys. hjson
// accepts strict JSON plus comments and trailing commas, so hand-edited
// files stay loadable.
func (s *Store) readOverrides() (map[string]any, error) {
	path := filepath.Join(s.dir, settingsFile)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxSettingsFileBytes {
		return nil, errors.New("settings.json exceeds size limit")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := hjson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	flat := map[string]any{}
	flatten("", doc, flat)
	return flat, nil
}

// Watch reloads the store whenever settings.json changes, debounced, until
// ctx is cancelled. Intended to run under workerutil.
func (s *Store) Watch(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("[config] settings watch unavailable", "error", err)
		return
	}
	defer fw.Close()
	if err := fw.Add(s.dir); err != nil {
		slog.Error("[config] settings watch add failed", "dir", s.dir, "error", err)
		return
	}

	debounced := debounce.New(reloadDebounce)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != settingsFile {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				debounced(s.reload)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Warn("[config] settings watch error", "error", err)
		}
	}
}
