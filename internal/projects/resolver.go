package projects

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	shellquote "github.com/kballard/go-shellquote"
)

// BuiltinStrategy selects the home-directory scanner + frecency ranking. Any
// other strategy value is treated as an external resolver command line.
const BuiltinStrategy = "projects"

// discoveredScore is the flat score for scanned paths absent from history.
const discoveredScore = 0.1

// Entry is one ranked project candidate.
type Entry struct {
	Name  string  `json:"name"`
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Options configures the resolver. Strategy, Ignore and MaxDepth come from
// settings and may change at runtime via SetOptions.
type Options struct {
	Strategy string
	Ignore   []string
	MaxDepth int
	Home     string
}

// runExternalFn is a test seam for external resolver invocation.
var runExternalFn = runExternal

// Resolver maps a query to ranked {name, path} candidates.
type Resolver struct {
	store *FrecencyStore
	scan  *scanner

	mu       sync.Mutex
	strategy string
}

// NewResolver creates a Resolver persisting history under configDir.
func NewResolver(configDir string, opts Options) *Resolver {
	if opts.Strategy == "" {
		opts.Strategy = BuiltinStrategy
	}
	ignore := opts.Ignore
	if len(ignore) == 0 {
		ignore = DefaultIgnore
	}
	return &Resolver{
		store:    NewFrecencyStore(configDir),
		scan:     newScanner(opts.Home, opts.MaxDepth, ignore),
		strategy: opts.Strategy,
	}
}

// SetOptions applies reloaded settings.
func (r *Resolver) SetOptions(opts Options) {
	r.mu.Lock()
	if opts.Strategy != "" {
		r.strategy = opts.Strategy
	}
	r.mu.Unlock()
	ignore := opts.Ignore
	if len(ignore) == 0 {
		ignore = DefaultIgnore
	}
	r.scan.configure(opts.MaxDepth, ignore)
}

// Rescan invalidates and rebuilds the scan cache. Run from the periodic
// rescan task.
func (r *Resolver) Rescan() {
	r.scan.refresh()
}

// List returns candidates matching query (case-insensitive substring on
// basename or path), ranked by descending score.
func (r *Resolver) List(ctx context.Context, query string) []Entry {
	r.mu.Lock()
	strategy := r.strategy
	r.mu.Unlock()

	var entries []Entry
	if strategy == BuiltinStrategy {
		entries = r.listBuiltin()
	} else {
		entries = r.listExternal(ctx, strategy)
	}

	if query != "" {
		q := strings.ToLower(query)
		filtered := entries[:0]
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.Path), q) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

// ResolveOne returns the best match for name, or nil.
func (r *Resolver) ResolveOne(ctx context.Context, name string) *Entry {
	entries := r.List(ctx, name)
	if len(entries) == 0 {
		return nil
	}
	return &entries[0]
}

// RecordSelection bumps the frecency rank of a chosen path. External
// resolvers track their own history; recording is a no-op there.
func (r *Resolver) RecordSelection(path string) {
	r.mu.Lock()
	strategy := r.strategy
	r.mu.Unlock()
	if strategy != BuiltinStrategy {
		return
	}
	r.store.Record(path)
}

// listBuiltin merges history entries with freshly scanned paths. Every known
// history path is a candidate at its frecency score; discovered paths not in
// history get a flat score.
func (r *Resolver) listBuiltin() []Entry {
	now := nowFn()
	history := r.store.Entries()

	entries := make([]Entry, 0, len(history))
	seen := make(map[string]struct{}, len(history))
	for path, e := range history {
		entries = append(entries, Entry{Name: filepath.Base(path), Path: path, Score: e.Score(now)})
		seen[path] = struct{}{}
	}
	for _, path := range r.scan.projects() {
		if _, ok := seen[path]; ok {
			continue
		}
		entries = append(entries, Entry{Name: filepath.Base(path), Path: path, Score: discoveredScore})
	}
	return entries
}

// listExternal shells out to the configured resolver tool and parses
// "score<WS>path" lines.
func (r *Resolver) listExternal(ctx context.Context, command string) []Entry {
	out, err := runExternalFn(ctx, command)
	if err != nil {
		slog.Warn("[projects] external resolver failed", "command", command, "error", err)
		return nil
	}
	var entries []Entry
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		score, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		path := strings.Join(fields[1:], " ")
		entries = append(entries, Entry{Name: filepath.Base(path), Path: path, Score: score})
	}
	return entries
}

// runExternal splits the command line shell-style and executes it.
func runExternal(ctx context.Context, command string) (string, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return "", fmt.Errorf("resolver command %q: %w", command, err)
	}
	if len(words) == 0 {
		return "", fmt.Errorf("resolver command is empty")
	}
	out, err := exec.CommandContext(ctx, words[0], words[1:]...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
