package projects

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// rescanInterval is how long a scan result stays fresh. The periodic rescan
// task and on-demand lookups share the same cache.
const rescanInterval = 5 * time.Minute

// defaultMaxDepth bounds the walk below the scan root.
const defaultMaxDepth = 3

// DefaultIgnore is the basename skip list applied while scanning. Directories
// on this list are neither reported nor descended into.
var DefaultIgnore = []string{
	"node_modules", ".git", "vendor", "target", "dist", "build",
	".cache", ".npm", ".cargo", ".rustup", "Library", "Applications",
}

// scanner walks the home directory for git repositories.
type scanner struct {
	root string

	mu       sync.Mutex
	paths    []string
	scanned  time.Time
	maxDepth int
	ignore   map[string]struct{}
}

func newScanner(root string, maxDepth int, ignore []string) *scanner {
	s := &scanner{root: root}
	s.configure(maxDepth, ignore)
	return s
}

// configure applies new scan parameters and invalidates the cache when they
// changed.
func (s *scanner) configure(maxDepth int, ignore []string) {
	if maxDepth < 1 {
		maxDepth = defaultMaxDepth
	}
	set := make(map[string]struct{}, len(ignore))
	for _, name := range ignore {
		set[name] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if maxDepth != s.maxDepth || !sameSet(set, s.ignore) {
		s.maxDepth = maxDepth
		s.ignore = set
		s.scanned = time.Time{}
	}
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// projects returns the cached scan result, refreshing it when stale.
func (s *scanner) projects() []string {
	s.mu.Lock()
	maxDepth, ignore := s.maxDepth, s.ignore
	fresh := nowFn().Sub(s.scanned) < rescanInterval && !s.scanned.IsZero()
	cached := s.paths
	s.mu.Unlock()

	if fresh {
		return cached
	}

	found := scanTree(s.root, maxDepth, ignore)

	s.mu.Lock()
	s.paths = found
	s.scanned = nowFn()
	s.mu.Unlock()
	return found
}

// refresh invalidates the cache and rescans immediately. The periodic task
// calls it so the work happens off the request path.
func (s *scanner) refresh() {
	s.mu.Lock()
	s.scanned = time.Time{}
	s.mu.Unlock()
	s.projects()
}

// scanTree walks root up to maxDepth levels deep. A directory containing a
// .git entry is a project and is not descended into.
func scanTree(root string, maxDepth int, ignore map[string]struct{}) []string {
	var found []string
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if depth > maxDepth {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if _, skip := ignore[name]; skip {
				continue
			}
			if name != ".git" && len(name) > 1 && name[0] == '.' {
				continue
			}
			sub := filepath.Join(dir, name)
			if isProject(sub) {
				found = append(found, sub)
				continue
			}
			walk(sub, depth+1)
		}
	}
	walk(root, 1)
	return found
}

// isProject reports whether dir contains a .git entry (directory or file;
// worktrees use a file).
func isProject(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil
}
