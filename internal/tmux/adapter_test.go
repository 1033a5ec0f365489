package tmux

import (
	"context"
	"testing"

	"muxtunnel/internal/claude"
	"muxtunnel/internal/proctree"
)

// fakeCLI scripts runTmuxFn by the leading tmux subcommand.
type fakeCLI struct {
	responses map[string]string
	errs      map[string]error
	calls     [][]string
}

func (f *fakeCLI) install(t *testing.T) {
	t.Helper()
	prev := runTmuxFn
	runTmuxFn = func(ctx context.Context, args ...string) (string, error) {
		f.calls = append(f.calls, args)
		if err, ok := f.errs[args[0]]; ok {
			return "", err
		}
		return f.responses[args[0]], nil
	}
	t.Cleanup(func() { runTmuxFn = prev })
}

func installProcessTable(t *testing.T, rows []proctree.Process) {
	t.Helper()
	prev := processTableFn
	processTableFn = func() *proctree.Table { return proctree.New(rows) }
	t.Cleanup(func() { processTableFn = prev })
}

const sampleListPanes = "" +
	"main\t0\tshell\t0\t%0\t1\t120\t30\t0\t0\t100\tzsh\t1700000000\t/home/u/code/acme\n" +
	"main\t0\tshell\t1\t%1\t0\t120\t30\t120\t0\t200\tvim\t1700000000\t/home/u/code/acme\n" +
	"main\t1\tlogs\t0\t%2\t0\t240\t60\t0\t0\t300\ttail\t1700000000\t/home/u/code/acme\n" +
	"work\t0\tmain\t0\t%3\t1\t80\t24\t0\t0\t400\tbash\t1700000100\t/home/u/work\n"

func TestSnapshotBuildsSessionsWindowsPanes(t *testing.T) {
	cli := &fakeCLI{responses: map[string]string{
		"list-panes":      sampleListPanes,
		"display-message": "120 30\n",
	}}
	cli.install(t)
	installProcessTable(t, []proctree.Process{
		{PID: 100, PPID: 1, Command: "zsh"},
		{PID: 101, PPID: 100, Command: "claude"},
	})

	a := NewAdapter(nil)
	sessions := a.Snapshot(context.Background())
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	main := sessions[0]
	if main.Name != "main" || len(main.Windows) != 2 {
		t.Fatalf("main session = %+v", main)
	}
	if main.Path != "/home/u/code/acme" || main.Activity != 1700000000 {
		t.Fatalf("session enrichment = %+v", main)
	}
	if main.Dimensions.Width != 120 || main.Dimensions.Height != 30 {
		t.Fatalf("dimensions = %+v", main.Dimensions)
	}

	// Targets are session:window.pane and unique.
	seen := map[string]bool{}
	for _, s := range sessions {
		for _, w := range s.Windows {
			for _, p := range w.Panes {
				if seen[p.Target] {
					t.Fatalf("duplicate target %q", p.Target)
				}
				seen[p.Target] = true
			}
		}
	}
	if !seen["main:0.0"] || !seen["main:1.0"] || !seen["work:0.0"] {
		t.Fatalf("targets = %v", seen)
	}

	// Wrapper pane resolves through the process tree.
	if got := main.Windows[0].Panes[0].Process; got != "claude" {
		t.Fatalf("resolved process = %q, want claude", got)
	}
	// Non-wrapper command passes through untouched.
	if got := main.Windows[0].Panes[1].Process; got != "vim" {
		t.Fatalf("resolved process = %q, want vim", got)
	}
}

func TestSnapshotOrdering(t *testing.T) {
	// Panes and windows delivered out of order by the CLI.
	out := "" +
		"s\t2\tb\t1\t%5\t0\t80\t24\t0\t0\t10\tvim\t1\t/p\n" +
		"s\t2\tb\t0\t%4\t1\t80\t24\t0\t0\t11\tvim\t1\t/p\n" +
		"s\t0\ta\t0\t%1\t1\t80\t24\t0\t0\t12\tvim\t1\t/p\n"
	cli := &fakeCLI{responses: map[string]string{"list-panes": out, "display-message": "80 24\n"}}
	cli.install(t)
	installProcessTable(t, nil)

	sessions := NewAdapter(nil).Snapshot(context.Background())
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d", len(sessions))
	}
	w := sessions[0].Windows
	if w[0].Index != 0 || w[1].Index != 2 {
		t.Fatalf("window order = %d,%d", w[0].Index, w[1].Index)
	}
	if w[1].Panes[0].Index != 0 || w[1].Panes[1].Index != 1 {
		t.Fatalf("pane order = %d,%d", w[1].Panes[0].Index, w[1].Panes[1].Index)
	}
}

func TestSnapshotServerDownYieldsEmpty(t *testing.T) {
	cli := &fakeCLI{errs: map[string]error{
		"list-panes": &CommandError{Args: []string{"list-panes"}, ExitCode: 1, Stderr: "no server running on /tmp/tmux-1000/default"},
	}}
	cli.install(t)
	installProcessTable(t, nil)

	sessions := NewAdapter(nil).Snapshot(context.Background())
	if sessions == nil || len(sessions) != 0 {
		t.Fatalf("snapshot = %v, want empty non-nil", sessions)
	}
}

type stubLinker struct{ link *claude.Link }

func (s *stubLinker) ActiveLink(projectPath string) *claude.Link {
	if s.link == nil {
		return nil
	}
	cp := *s.link
	cp.ProjectPath = projectPath
	return &cp
}

func TestSnapshotAttachesAssistantLink(t *testing.T) {
	out := "s\t0\tw\t0\t%1\t1\t80\t24\t0\t0\t100\tzsh\t1\t/p\n"
	cli := &fakeCLI{responses: map[string]string{
		"list-panes":      out,
		"display-message": "/home/u/code/acme\n", // serves both dimensions and cwd; cwd parse is last call
		"capture-pane":    "plain output, no spinner",
	}}
	cli.install(t)
	installProcessTable(t, []proctree.Process{
		{PID: 100, PPID: 1, Command: "zsh"},
		{PID: 101, PPID: 100, Command: "claude"},
	})

	linker := &stubLinker{link: &claude.Link{SessionID: "abc", Status: claude.StatusDone, Notified: true}}
	sessions := NewAdapter(linker).Snapshot(context.Background())
	pane := sessions[0].Windows[0].Panes[0]
	if pane.Claude == nil {
		t.Fatal("assistant pane missing claude link")
	}
	if pane.Claude.SessionID != "abc" || !pane.Claude.Notified {
		t.Fatalf("link = %+v", pane.Claude)
	}
	if pane.Claude.Status != claude.StatusDone {
		t.Fatalf("status = %q, want done (no spinner)", pane.Claude.Status)
	}
}

func TestSpinnerOverridesStatus(t *testing.T) {
	out := "s\t0\tw\t0\t%1\t1\t80\t24\t0\t0\t100\tclaude\t1\t/p\n"
	cli := &fakeCLI{responses: map[string]string{
		"list-panes":      out,
		"display-message": "/home/u/code/acme\n",
		"capture-pane":    "\x1b[38;5;215m✻ Thinking…\x1b[0m",
	}}
	cli.install(t)
	installProcessTable(t, nil)

	linker := &stubLinker{link: &claude.Link{SessionID: "abc", Status: claude.StatusDone}}
	sessions := NewAdapter(linker).Snapshot(context.Background())
	pane := sessions[0].Windows[0].Panes[0]
	if pane.Claude == nil || pane.Claude.Status != claude.StatusThinking {
		t.Fatalf("link = %+v, want spinner-forced thinking", pane.Claude)
	}
}

func TestLatestFallsBackToOnDemandSnapshot(t *testing.T) {
	cli := &fakeCLI{responses: map[string]string{
		"list-panes":      "s\t0\tw\t0\t%1\t1\t80\t24\t0\t0\t1\tvim\t1\t/p\n",
		"display-message": "80 24\n",
	}}
	cli.install(t)
	installProcessTable(t, nil)

	a := NewAdapter(nil)
	sessions := a.Latest(context.Background())
	if len(sessions) != 1 || sessions[0].Name != "s" {
		t.Fatalf("Latest = %+v", sessions)
	}
}

func TestSubscribeReceivesPublishedSnapshot(t *testing.T) {
	a := NewAdapter(nil)
	ch, cancel := a.Subscribe()
	defer cancel()

	a.publish([]Session{{Name: "x"}})
	got := <-ch
	if len(got) != 1 || got[0].Name != "x" {
		t.Fatalf("subscriber got %+v", got)
	}

	// A slow subscriber sees the newest snapshot, not a backlog.
	a.publish([]Session{{Name: "y"}})
	a.publish([]Session{{Name: "z"}})
	got = <-ch
	if got[0].Name != "z" {
		t.Fatalf("subscriber got %q, want newest %q", got[0].Name, "z")
	}
}
