package tmux

import (
	"context"
	"strconv"
	"strings"
)

// paneInfoFormat mirrors the pane fields of listPanesFormat for a single
// target lookup.
const paneInfoFormat = "#{session_name}\t#{window_index}\t#{pane_index}\t#{pane_id}\t" +
	"#{pane_active}\t#{pane_width}\t#{pane_height}\t#{pane_left}\t#{pane_top}\t" +
	"#{pane_pid}\t#{pane_current_command}"

// Running probes whether a tmux server is reachable.
func (a *Adapter) Running(ctx context.Context) bool {
	_, err := runTmuxFn(ctx, "list-sessions", "-F", "#{session_name}")
	return err == nil
}

// CreateSession starts a detached session named name rooted at cwd.
func (a *Adapter) CreateSession(ctx context.Context, name, cwd string) error {
	args := []string{"new-session", "-d", "-s", name}
	if cwd != "" {
		args = append(args, "-c", cwd)
	}
	_, err := runTmuxFn(ctx, args...)
	return err
}

// KillSession terminates a session by name.
func (a *Adapter) KillSession(ctx context.Context, name string) error {
	_, err := runTmuxFn(ctx, "kill-session", "-t", name)
	if isMissingTarget(err) {
		return ErrPaneNotFound
	}
	return err
}

// KillPane removes one pane by target.
func (a *Adapter) KillPane(ctx context.Context, target string) error {
	_, err := runTmuxFn(ctx, "kill-pane", "-t", target)
	if isMissingTarget(err) {
		return ErrPaneNotFound
	}
	return err
}

// SendKeys types text into a pane. With literal set, the text is sent as-is
// (no key-name interpretation) followed by Enter.
func (a *Adapter) SendKeys(ctx context.Context, target, text string, literal bool) error {
	var err error
	if literal {
		if _, err = runTmuxFn(ctx, "send-keys", "-t", target, "-l", text); err == nil {
			_, err = runTmuxFn(ctx, "send-keys", "-t", target, "Enter")
		}
	} else {
		_, err = runTmuxFn(ctx, "send-keys", "-t", target, text)
	}
	if isMissingTarget(err) {
		return ErrPaneNotFound
	}
	return err
}

// SendInterrupt delivers ^C to a pane.
func (a *Adapter) SendInterrupt(ctx context.Context, target string) error {
	_, err := runTmuxFn(ctx, "send-keys", "-t", target, "C-c")
	if isMissingTarget(err) {
		return ErrPaneNotFound
	}
	return err
}

// PaneInfo fetches one pane by target. Returns ErrPaneNotFound when the
// target does not resolve.
func (a *Adapter) PaneInfo(ctx context.Context, target string) (*Pane, error) {
	out, err := runTmuxFn(ctx, "display-message", "-p", "-t", target, paneInfoFormat)
	if err != nil {
		if isMissingTarget(err) || isServerDown(err) {
			return nil, ErrPaneNotFound
		}
		return nil, err
	}
	fields := strings.Split(strings.TrimSuffix(out, "\n"), "\t")
	if len(fields) != 11 {
		return nil, ErrPaneNotFound
	}
	paneIndex, _ := strconv.Atoi(fields[2])
	pane := &Pane{
		Target: fields[0] + ":" + fields[1] + "." + fields[2],
		PaneID: fields[3],
		Index:  paneIndex,
		Active: fields[4] == "1",
	}
	pane.Geometry.Cols, _ = strconv.Atoi(fields[5])
	pane.Geometry.Rows, _ = strconv.Atoi(fields[6])
	pane.Geometry.Left, _ = strconv.Atoi(fields[7])
	pane.Geometry.Top, _ = strconv.Atoi(fields[8])
	pane.PID, _ = strconv.Atoi(fields[9])
	pane.Process = fields[10]
	return pane, nil
}

// PaneCwd returns a pane's current working directory.
func (a *Adapter) PaneCwd(ctx context.Context, target string) (string, error) {
	out, err := runTmuxFn(ctx, "display-message", "-p", "-t", target, "#{pane_current_path}")
	if err != nil {
		if isMissingTarget(err) {
			return "", ErrPaneNotFound
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// InstallSessionChangedHook registers a global tmux hook that calls the
// gateway whenever a client switches sessions. endpoint is the full URL of
// the hook route; tmux expands the client pid and session name.
func (a *Adapter) InstallSessionChangedHook(ctx context.Context, endpoint string) error {
	cmd := "run-shell 'curl -s \"" + endpoint +
		"?pid=#{client_pid}&session=#{session_name}\" >/dev/null 2>&1 || true'"
	_, err := runTmuxFn(ctx, "set-hook", "-g", "client-session-changed", cmd)
	return err
}

// RemoveSessionChangedHook unregisters the global session-changed hook.
func (a *Adapter) RemoveSessionChangedHook(ctx context.Context) error {
	_, err := runTmuxFn(ctx, "set-hook", "-gu", "client-session-changed")
	return err
}
