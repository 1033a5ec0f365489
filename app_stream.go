package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"muxtunnel/internal/terminal"
	"muxtunnel/internal/wsserver"
)

// handleStream upgrades GET /ws?pane=<target>&cols=<n>&rows=<n> and bridges
// the socket to a dedicated PTY client:
//
//  1. verify the pane exists (close 4001 on miss)
//  2. send the pane-info control frame before any data byte
//  3. open the PTY client (close 4002 on spawn failure)
//  4. pump: PTY reads -> binary frames, inbound frames -> resize/keys/raw
//  5. heartbeat: ping every 30s, terminate on a missed pong
func (a *App) handleStream(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("pane")
	cols, _ := strconv.Atoi(r.URL.Query().Get("cols"))
	rows, _ := strconv.Atoi(r.URL.Query().Get("rows"))

	ws, err := wsserver.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := wsserver.NewConn(ws)

	pane, err := a.adapter.PaneInfo(r.Context(), target)
	if err != nil {
		conn.CloseWithCode(wsserver.ClosePaneNotFound, "Pane not found")
		return
	}
	if err := conn.WriteControl(wsserver.NewPaneInfo(pane)); err != nil {
		conn.Terminate()
		return
	}

	// exited fires from OnExit; the inbound loop treats it as end-of-stream.
	exited := make(chan int, 1)
	client, err := a.ptys.Open(target, cols, rows, terminal.Hooks{
		OnData: func(data []byte) {
			// Forwarded verbatim: one PTY read, one binary frame. Write
			// failures surface in the inbound loop as a read error once the
			// connection dies.
			if err := conn.WriteBinary(data); err != nil {
				conn.Terminate()
			}
		},
		OnExit: func(code int) { exited <- code },
	})
	if err != nil {
		slog.Warn("[stream] pty open failed", "target", target, "error", err)
		conn.CloseWithCode(wsserver.CloseSpawnFailed, "Failed to attach")
		return
	}

	a.registerConn(client.ID, conn)
	defer func() {
		a.unregisterConn(client.ID)
		client.Close()
	}()

	pingCtx, stopPing := context.WithCancel(r.Context())
	defer stopPing()
	go conn.PingLoop(pingCtx)

	go func() {
		// The attach child exiting (pane killed, server gone) ends the
		// stream with a normal close.
		<-exited
		conn.CloseWithCode(websocket.CloseNormalClosure, "")
	}()

	a.streamInbound(conn, client)
}

// streamInbound processes client frames strictly in arrival order until the
// socket dies. Binary frames and unrecognized text are raw input; recognized
// JSON control messages drive resize and key injection.
func (a *App) streamInbound(conn *wsserver.Conn, client *terminal.Client) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			if err := client.Write(data); err != nil {
				return
			}
		case websocket.TextMessage:
			msg, ok := wsserver.ParseInbound(data)
			if !ok {
				if err := client.Write(data); err != nil {
					return
				}
				continue
			}
			switch msg.Type {
			case wsserver.InboundResize:
				if err := client.Resize(msg.Cols, msg.Rows); err != nil {
					slog.Debug("[stream] resize failed", "target", client.Target, "error", err)
				}
			case wsserver.InboundKeys:
				if err := client.Write([]byte(msg.Keys)); err != nil {
					return
				}
			}
		}
	}
}

func (a *App) registerConn(clientID string, conn *wsserver.Conn) {
	a.connMu.Lock()
	a.conns[clientID] = conn
	a.connMu.Unlock()
}

func (a *App) unregisterConn(clientID string) {
	a.connMu.Lock()
	delete(a.conns, clientID)
	a.connMu.Unlock()
}

// handleSessionChangedHook receives tmux's client-session-changed hook and
// forwards a session-changed control frame to the stream whose attach child
// matches the reported pid.
func (a *App) handleSessionChangedHook(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(r.URL.Query().Get("pid"))
	session := r.URL.Query().Get("session")
	if err != nil || pid <= 0 || session == "" {
		writeError(w, http.StatusBadRequest, "missing pid or session")
		return
	}

	client := a.ptys.ClientByPID(pid)
	if client == nil {
		// The attach client already went away; nothing to notify.
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	a.connMu.Lock()
	conn := a.conns[client.ID]
	a.connMu.Unlock()
	if conn != nil {
		if err := conn.WriteControl(wsserver.NewSessionChanged(session)); err != nil {
			slog.Debug("[stream] session-changed notify failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}
