package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
)

// attachCommandFn builds the child command for a pane target. A test seam:
// tests substitute a harmless command for the tmux attach.
var attachCommandFn = func(target string) (string, []string) {
	return "tmux", []string{"attach-session", "-t", target}
}

// Hooks receive a client's PTY events. OnData is called from the client's
// dedicated reader goroutine with the raw chunk exactly as read; OnExit fires
// once after the child has been reaped.
type Hooks struct {
	OnData func(data []byte)
	OnExit func(code int)
}

// Client is one attached stream client: a PTY running the multiplexer attach
// for a single target.
type Client struct {
	ID     string
	Target string

	term    *Terminal
	manager *Manager
	closeMu sync.Mutex
}

// Manager owns every PTY client in the process. It is the only component
// that spawns or reaps attach children; the gateway holds clients by id and
// child pid only.
type Manager struct {
	mu    sync.Mutex
	byID  map[string]*Client
	byPID map[int]*Client
	wg    sync.WaitGroup
}

// NewManager creates an empty client registry.
func NewManager() *Manager {
	return &Manager{
		byID:  make(map[string]*Client),
		byPID: make(map[int]*Client),
	}
}

// Open attaches a new PTY client to target at the given size. The caller
// must have verified the pane exists. Spawn failures wrap the underlying
// error.
func (m *Manager) Open(target string, cols, rows int, hooks Hooks) (*Client, error) {
	command, args := attachCommandFn(target)
	term, err := Start(Config{
		Command: command,
		Args:    args,
		Env:     ChildEnv(os.Environ()),
		Columns: cols,
		Rows:    rows,
	})
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}

	client := &Client{
		ID:      uuid.NewString(),
		Target:  target,
		term:    term,
		manager: m,
	}

	pid := term.PID()
	m.mu.Lock()
	m.byID[client.ID] = client
	if pid > 0 {
		m.byPID[pid] = client
	}
	m.mu.Unlock()

	slog.Info("[pty] client attached", "id", client.ID, "target", target, "pid", pid,
		"cols", cols, "rows", rows)

	// Reader + reaper: forward chunks until EOF, then reap and report exit.
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if hooks.OnData != nil {
			term.ReadLoop(hooks.OnData)
		} else {
			term.ReadLoop(func([]byte) {})
		}
		code := term.Wait()
		m.unregister(client, pid)
		slog.Info("[pty] client exited", "id", client.ID, "target", target, "code", code)
		if hooks.OnExit != nil {
			hooks.OnExit(code)
		}
	}()

	return client, nil
}

func (m *Manager) unregister(c *Client, pid int) {
	m.mu.Lock()
	delete(m.byID, c.ID)
	if pid > 0 && m.byPID[pid] == c {
		delete(m.byPID, pid)
	}
	m.mu.Unlock()
}

// ClientByPID looks up a client by its attach child pid. Used by the
// session-changed hook endpoint.
func (m *Manager) ClientByPID(pid int) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byPID[pid]
}

// CloseAll closes every client and waits for their reader goroutines.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.byID))
	for _, c := range m.byID {
		clients = append(clients, c)
	}
	m.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
	m.wg.Wait()
}

// PID returns the attach child pid.
func (c *Client) PID() int { return c.term.PID() }

// Write sends raw bytes to the child's stdin, untransformed.
func (c *Client) Write(data []byte) error {
	_, err := c.term.Write(data)
	return err
}

// Resize forwards a new size to the PTY. Best-effort.
func (c *Client) Resize(cols, rows int) error {
	return c.term.Resize(cols, rows)
}

// Close terminates the client's child. The reader goroutine performs the
// reap and fires OnExit. Safe to call repeatedly.
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if err := c.term.Close(); err != nil {
		slog.Debug("[pty] close", "id", c.ID, "error", err)
	}
}
