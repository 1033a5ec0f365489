// Package proctree resolves the effective command of a pane by walking a
// point-in-time snapshot of the system process table. A single snapshot is
// taken per tmux poll, so resolving N panes costs one process-table read
// rather than N subprocess invocations.
package proctree

import (
	"sort"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// maxWalkDepth bounds the descent through wrapper processes. Deep chains
// (login shell -> version manager shim -> node -> tool) fit comfortably in
// five levels.
const maxWalkDepth = 5

// wrapperCommands are shells and launchers that sit between the pane and the
// command the user actually cares about. A pane reporting one of these is
// resolved by walking its children.
var wrapperCommands = map[string]struct{}{
	"zsh":  {},
	"bash": {},
	"sh":   {},
	"fish": {},
	"tcsh": {},
	"csh":  {},
	"npm":  {},
	"npx":  {},
	"node": {},
}

// Process is one process-table row.
type Process struct {
	PID     int
	PPID    int
	Command string
}

// Table is an immutable index over one process-table snapshot.
type Table struct {
	command  map[int]string
	children map[int][]int
}

// Snapshot reads the current process table. A failed read yields an empty
// table: command resolution then falls back to the reported pane command.
func Snapshot() *Table {
	procs, err := ps.Processes()
	if err != nil {
		return New(nil)
	}
	rows := make([]Process, 0, len(procs))
	for _, p := range procs {
		rows = append(rows, Process{PID: p.Pid(), PPID: p.PPid(), Command: p.Executable()})
	}
	return New(rows)
}

// New builds a Table from process rows. Children are kept in ascending pid
// order so resolution is deterministic.
func New(rows []Process) *Table {
	t := &Table{
		command:  make(map[int]string, len(rows)),
		children: make(map[int][]int, len(rows)),
	}
	for _, r := range rows {
		t.command[r.PID] = r.Command
		t.children[r.PPID] = append(t.children[r.PPID], r.PID)
	}
	for _, kids := range t.children {
		sort.Ints(kids)
	}
	return t
}

// EffectiveCommand resolves the command a pane is really running. If the
// reported command is not a wrapper it is returned as-is. Otherwise the
// pane's process subtree is walked, at most maxWalkDepth levels deep: the
// first non-wrapper child found at any level wins. A subtree containing only
// wrappers resolves to the reported command.
func EffectiveCommand(t *Table, pid int, reported string) string {
	if !IsWrapper(reported) {
		return reported
	}
	cur := pid
	for depth := 0; depth < maxWalkDepth; depth++ {
		kids := t.children[cur]
		if len(kids) == 0 {
			break
		}
		for _, kid := range kids {
			if cmd := t.command[kid]; !IsWrapper(cmd) && cmd != "" {
				return baseCommand(cmd)
			}
		}
		// All children at this level are wrappers; descend into the first.
		cur = kids[0]
	}
	return reported
}

// IsWrapper reports whether cmd names a shell or launcher from the wrapper
// set. Login-shell spellings ("-zsh") and full paths are normalized first.
func IsWrapper(cmd string) bool {
	_, ok := wrapperCommands[strings.ToLower(baseCommand(cmd))]
	return ok
}

// baseCommand strips a login-shell dash prefix and any directory components.
func baseCommand(cmd string) string {
	cmd = strings.TrimPrefix(cmd, "-")
	if i := strings.LastIndexByte(cmd, '/'); i >= 0 {
		cmd = cmd[i+1:]
	}
	return cmd
}
