package tmux

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"muxtunnel/internal/claude"
	"muxtunnel/internal/proctree"
)

// pollInterval is the period of the background snapshot loop.
const pollInterval = 2 * time.Second

// listPanesFormat enumerates every field the snapshot needs in one
// list-panes call. Tab-separated: window names and session paths may contain
// any printable character except tab.
const listPanesFormat = "#{session_name}\t#{window_index}\t#{window_name}\t" +
	"#{pane_index}\t#{pane_id}\t#{pane_active}\t" +
	"#{pane_width}\t#{pane_height}\t#{pane_left}\t#{pane_top}\t" +
	"#{pane_pid}\t#{pane_current_command}\t#{session_activity}\t#{session_path}"

const listPanesFields = 14

// assistantCommand is the resolved process name that marks a pane as running
// the assistant CLI.
const assistantCommand = "claude"

// AssistantLinker resolves the active assistant session for a project
// directory. Satisfied by *claude.Watcher.
type AssistantLinker interface {
	ActiveLink(projectPath string) *claude.Link
}

// processTableFn is a test seam for the process-table snapshot.
var processTableFn = proctree.Snapshot

// Adapter owns the current tmux snapshot. Readers share the published
// snapshot; it is replaced wholesale by each poll and never mutated in place.
type Adapter struct {
	linker AssistantLinker

	mu     sync.RWMutex
	latest []Session
	primed bool
	subs   map[chan []Session]struct{}
}

// NewAdapter creates an Adapter. linker may be nil (no assistant enrichment).
func NewAdapter(linker AssistantLinker) *Adapter {
	return &Adapter{
		linker: linker,
		subs:   make(map[chan []Session]struct{}),
	}
}

// Run polls tmux until ctx is cancelled, publishing each snapshot to
// subscribers. Intended to run under workerutil.
func (a *Adapter) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		snapshot := a.Snapshot(ctx)
		a.publish(snapshot)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Subscribe registers a snapshot channel. The channel receives the latest
// snapshot after every poll; slow receivers miss intermediate snapshots
// rather than blocking the poll loop.
func (a *Adapter) Subscribe() (<-chan []Session, func()) {
	ch := make(chan []Session, 1)
	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()
	cancel := func() {
		a.mu.Lock()
		delete(a.subs, ch)
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Adapter) publish(snapshot []Session) {
	a.mu.Lock()
	a.latest = snapshot
	a.primed = true
	subs := make([]chan []Session, 0, len(a.subs))
	for ch := range a.subs {
		subs = append(subs, ch)
	}
	a.mu.Unlock()

	for _, ch := range subs {
		// Replace a pending unread snapshot instead of blocking.
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// Latest returns the most recently published snapshot, polling on demand when
// the loop has not produced one yet.
func (a *Adapter) Latest(ctx context.Context) []Session {
	a.mu.RLock()
	primed, snapshot := a.primed, a.latest
	a.mu.RUnlock()
	if primed {
		return snapshot
	}
	return a.Snapshot(ctx)
}

// Snapshot lists every pane in one tmux call, reads the process table in
// parallel, and assembles sessions with windows and panes in ascending index
// order. An unreachable tmux server yields an empty snapshot, not an error.
func (a *Adapter) Snapshot(ctx context.Context) []Session {
	tableCh := make(chan *proctree.Table, 1)
	go func() { tableCh <- processTableFn() }()

	out, err := runTmuxFn(ctx, "list-panes", "-a", "-F", listPanesFormat)
	if err != nil {
		if !isServerDown(err) {
			slog.Warn("[tmux] list-panes failed", "error", err)
		}
		<-tableCh
		return []Session{}
	}
	table := <-tableCh

	sessions := parseListPanes(out, table)
	a.fetchDimensions(ctx, sessions)
	if a.linker != nil {
		a.linkAssistantPanes(ctx, sessions)
	}
	return sessions
}

// parseListPanes groups list-panes output into sessions -> windows -> panes,
// resolving each pane's effective process. Session order follows the CLI
// output; windows and panes are sorted by index.
func parseListPanes(out string, table *proctree.Table) []Session {
	type windowKey struct {
		session string
		index   int
	}
	sessions := []Session{}
	sessionAt := map[string]int{}
	windowAt := map[windowKey]int{}

	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != listPanesFields {
			slog.Debug("[tmux] skipping malformed list-panes line", "fields", len(fields))
			continue
		}
		sessionName := fields[0]
		windowIndex, _ := strconv.Atoi(fields[1])
		windowName := fields[2]
		paneIndex, _ := strconv.Atoi(fields[3])
		paneID := fields[4]
		active := fields[5] == "1"
		cols, _ := strconv.Atoi(fields[6])
		rows, _ := strconv.Atoi(fields[7])
		left, _ := strconv.Atoi(fields[8])
		top, _ := strconv.Atoi(fields[9])
		pid, _ := strconv.Atoi(fields[10])
		command := fields[11]
		activity, _ := strconv.ParseInt(fields[12], 10, 64)
		path := fields[13]

		si, ok := sessionAt[sessionName]
		if !ok {
			si = len(sessions)
			sessionAt[sessionName] = si
			sessions = append(sessions, Session{Name: sessionName, Activity: activity, Path: path})
		}
		wk := windowKey{sessionName, windowIndex}
		wi, ok := windowAt[wk]
		if !ok {
			wi = len(sessions[si].Windows)
			windowAt[wk] = wi
			sessions[si].Windows = append(sessions[si].Windows, Window{Index: windowIndex, Name: windowName})
		}

		pane := Pane{
			Target:   sessionName + ":" + strconv.Itoa(windowIndex) + "." + strconv.Itoa(paneIndex),
			PaneID:   paneID,
			Index:    paneIndex,
			Active:   active,
			PID:      pid,
			Geometry: Geometry{Cols: cols, Rows: rows, Left: left, Top: top},
			Process:  proctree.EffectiveCommand(table, pid, command),
		}
		sessions[si].Windows[wi].Panes = append(sessions[si].Windows[wi].Panes, pane)
	}

	for si := range sessions {
		sort.Slice(sessions[si].Windows, func(i, j int) bool {
			return sessions[si].Windows[i].Index < sessions[si].Windows[j].Index
		})
		for wi := range sessions[si].Windows {
			panes := sessions[si].Windows[wi].Panes
			sort.Slice(panes, func(i, j int) bool { return panes[i].Index < panes[j].Index })
		}
	}
	return sessions
}

// fetchDimensions fills each session's current window extent, one CLI call
// per session, in parallel.
func (a *Adapter) fetchDimensions(ctx context.Context, sessions []Session) {
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			out, err := runTmuxFn(ctx, "display-message", "-p", "-t", s.Name+":",
				"#{window_width} #{window_height}")
			if err != nil {
				return
			}
			parts := strings.Fields(strings.TrimSpace(out))
			if len(parts) != 2 {
				return
			}
			s.Dimensions.Width, _ = strconv.Atoi(parts[0])
			s.Dimensions.Height, _ = strconv.Atoi(parts[1])
		}(&sessions[i])
	}
	wg.Wait()
}

// linkAssistantPanes attaches a claude.Link to every pane running the
// assistant CLI, and overrides the derived status to thinking when the
// pane's recent output shows the live spinner.
func (a *Adapter) linkAssistantPanes(ctx context.Context, sessions []Session) {
	for si := range sessions {
		for wi := range sessions[si].Windows {
			panes := sessions[si].Windows[wi].Panes
			for pi := range panes {
				if panes[pi].Process != assistantCommand {
					continue
				}
				cwd, err := a.PaneCwd(ctx, panes[pi].Target)
				if err != nil {
					continue
				}
				link := a.linker.ActiveLink(cwd)
				if link == nil {
					continue
				}
				if link.Status != claude.StatusThinking && a.paneShowsSpinner(ctx, panes[pi].Target) {
					link.Status = claude.StatusThinking
				}
				panes[pi].Claude = link
			}
		}
	}
}

// paneShowsSpinner captures the pane's recent output with escape sequences
// and looks for the assistant's animated thinking indicator: a 256-color SGR
// together with the ellipsis glyph the spinner renders.
func (a *Adapter) paneShowsSpinner(ctx context.Context, target string) bool {
	out, err := runTmuxFn(ctx, "capture-pane", "-e", "-p", "-t", target, "-S", "-12")
	if err != nil {
		return false
	}
	return strings.Contains(out, "\x1b[38;5;") && strings.Contains(out, "…")
}
