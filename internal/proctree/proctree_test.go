package proctree

import "testing"

func TestEffectiveCommandNonWrapperPassesThrough(t *testing.T) {
	tbl := New([]Process{{PID: 100, PPID: 1, Command: "vim"}})
	if got := EffectiveCommand(tbl, 100, "vim"); got != "vim" {
		t.Fatalf("EffectiveCommand = %q, want %q", got, "vim")
	}
}

func TestEffectiveCommandSkipsWrapperChain(t *testing.T) {
	// zsh(100) -> node(101) -> vim(102)
	tbl := New([]Process{
		{PID: 100, PPID: 1, Command: "zsh"},
		{PID: 101, PPID: 100, Command: "node"},
		{PID: 102, PPID: 101, Command: "vim"},
	})
	if got := EffectiveCommand(tbl, 100, "zsh"); got != "vim" {
		t.Fatalf("EffectiveCommand = %q, want %q", got, "vim")
	}
}

func TestEffectiveCommandPrefersNonWrapperSibling(t *testing.T) {
	// bash(10) -> [node(11), claude(12)]: claude wins even though node sorts first.
	tbl := New([]Process{
		{PID: 10, PPID: 1, Command: "bash"},
		{PID: 11, PPID: 10, Command: "node"},
		{PID: 12, PPID: 10, Command: "claude"},
	})
	if got := EffectiveCommand(tbl, 10, "bash"); got != "claude" {
		t.Fatalf("EffectiveCommand = %q, want %q", got, "claude")
	}
}

func TestEffectiveCommandWrapperOnlySubtree(t *testing.T) {
	tbl := New([]Process{
		{PID: 20, PPID: 1, Command: "zsh"},
		{PID: 21, PPID: 20, Command: "bash"},
	})
	if got := EffectiveCommand(tbl, 20, "zsh"); got != "zsh" {
		t.Fatalf("EffectiveCommand = %q, want original %q", got, "zsh")
	}
}

func TestEffectiveCommandDepthLimit(t *testing.T) {
	// Six nested shells with the target at depth 6: out of reach.
	rows := []Process{{PID: 1, PPID: 0, Command: "sh"}}
	for i := 2; i <= 6; i++ {
		rows = append(rows, Process{PID: i, PPID: i - 1, Command: "sh"})
	}
	rows = append(rows, Process{PID: 7, PPID: 6, Command: "vim"})
	tbl := New(rows)
	if got := EffectiveCommand(tbl, 1, "sh"); got != "sh" {
		t.Fatalf("EffectiveCommand = %q, want %q (beyond depth limit)", got, "sh")
	}
	// Reachable at depth 5.
	if got := EffectiveCommand(tbl, 2, "sh"); got != "vim" {
		t.Fatalf("EffectiveCommand = %q, want %q (at depth limit)", got, "vim")
	}
}

func TestIsWrapperNormalization(t *testing.T) {
	cases := map[string]bool{
		"zsh":          true,
		"-zsh":         true,
		"/bin/bash":    true,
		"Node":         true,
		"vim":          false,
		"claude":       false,
		"-/usr/bin/sh": true,
	}
	for cmd, want := range cases {
		if got := IsWrapper(cmd); got != want {
			t.Errorf("IsWrapper(%q) = %v, want %v", cmd, got, want)
		}
	}
}

func TestEffectiveCommandReturnsBasename(t *testing.T) {
	tbl := New([]Process{
		{PID: 30, PPID: 1, Command: "zsh"},
		{PID: 31, PPID: 30, Command: "/usr/local/bin/claude"},
	})
	if got := EffectiveCommand(tbl, 30, "zsh"); got != "claude" {
		t.Fatalf("EffectiveCommand = %q, want basename %q", got, "claude")
	}
}
