package claude

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// rewatchInterval is how often the watcher retries attaching to the
// transcript root when it does not exist yet (or was recreated).
const rewatchInterval = 5 * time.Second

// nowFn is a test seam for status derivation timestamps.
var nowFn = time.Now

// linkState is the latch bookkeeping for one assistant session.
type linkState struct {
	link       Link
	prevStatus Status
}

// Watcher derives per-session status from transcript files and maintains the
// notification latch. One Watcher serves the whole process.
type Watcher struct {
	root string // $HOME/.claude/projects

	// mu guards links. Writers hold it only across in-memory mutation;
	// file reads happen outside the lock.
	mu    sync.Mutex
	links map[string]*linkState // sessionId -> latch state
}

// NewWatcher creates a Watcher rooted at home's transcript directory.
func NewWatcher(home string) *Watcher {
	return &Watcher{
		root:  filepath.Join(home, projectsDir),
		links: make(map[string]*linkState),
	}
}

// Run watches the transcript root recursively until ctx is cancelled. Every
// write to a *.jsonl file re-derives that session's status and advances the
// latch. The watch survives the root being absent or recreated.
func (w *Watcher) Run(ctx context.Context) {
	for {
		if err := w.watchOnce(ctx); err != nil {
			slog.Warn("[claude] transcript watch interrupted", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(rewatchInterval):
		}
	}
}

// watchOnce attaches fsnotify to the root and all project subdirectories and
// pumps events until ctx is cancelled or the watcher errors out.
func (w *Watcher) watchOnce(ctx context.Context) error {
	if _, err := os.Stat(w.root); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	// fsnotify watches are not recursive; add each project directory.
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := fw.Add(filepath.Join(w.root, e.Name())); err != nil {
				slog.Debug("[claude] watch add failed", "dir", e.Name(), "error", err)
			}
		}
	}
	slog.Info("[claude] watching transcripts", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("event channel closed")
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("error channel closed")
			}
			return err
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	// New project directory: extend the watch.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := fw.Add(ev.Name); err != nil {
				slog.Debug("[claude] watch add failed", "dir", ev.Name, "error", err)
			}
			return
		}
	}
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return
	}
	w.handleEventPath(ev.Name)
}

// handleEventPath re-derives status for the transcript at path and advances
// the latch. Non-transcript paths are ignored.
func (w *Watcher) handleEventPath(path string) {
	sessionID := sessionIDFromPath(path)
	if sessionID == "" {
		return
	}
	w.applyStatus(sessionID, deriveStatus(path, nowFn()))
}

// applyStatus advances the latch for one session:
//
//   - thinking -> done sets the latch
//   - a done status that was never notified nor viewed sets the latch
//     (covers sessions that finished before we started watching)
//   - leaving done starts a new turn and clears the viewed marker
func (w *Watcher) applyStatus(sessionID string, status Status) Link {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.links[sessionID]
	if !ok {
		st = &linkState{link: Link{SessionID: sessionID, Status: StatusIdle}, prevStatus: StatusIdle}
		w.links[sessionID] = st
	}

	st.link.Status = status
	switch {
	case st.prevStatus == StatusThinking && status == StatusDone:
		st.link.Notified = true
	case status == StatusDone && !st.link.Notified && st.link.ViewedAt == nil:
		st.link.Notified = true
	}
	if st.prevStatus == StatusDone && status != StatusDone {
		st.link.ViewedAt = nil
	}
	st.prevStatus = status
	return st.link
}

// MarkViewed acknowledges a notification: clears the latch and records the
// view time. Returns false when the session is unknown.
func (w *Watcher) MarkViewed(sessionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.links[sessionID]
	if !ok {
		return false
	}
	now := nowFn()
	st.link.Notified = false
	st.link.ViewedAt = &now
	return true
}

// ActiveLink resolves the active assistant session for a project path: the
// most recently modified transcript in the project's directory, with its
// current derived status and latch state. Returns nil when the project has no
// transcripts.
func (w *Watcher) ActiveLink(projectPath string) *Link {
	if projectPath == "" {
		return nil
	}
	projDir := filepath.Join(w.root, ProjectSlug(projectPath))
	sessionID, path := latestTranscript(projDir)
	if sessionID == "" {
		return nil
	}

	status := deriveStatus(path, nowFn())
	link := w.applyStatus(sessionID, status)

	link.ProjectPath = projectPath
	if summaries := readIndexSummaries(projDir); summaries != nil {
		link.Summary = summaries[sessionID]
	}

	w.mu.Lock()
	st := w.links[sessionID]
	st.link.ProjectPath = projectPath
	if link.Summary != "" {
		st.link.Summary = link.Summary
	}
	w.mu.Unlock()
	return &link
}

// Links returns a copy of every tracked link, keyed by session id.
func (w *Watcher) Links() map[string]Link {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]Link, len(w.links))
	for id, st := range w.links {
		out[id] = st.link
	}
	return out
}
