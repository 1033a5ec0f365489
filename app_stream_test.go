package main

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestStreamMissingPaneClosesPermanently covers the permanent-close contract:
// a stream opened for a pane that cannot be resolved is rejected with close
// code 4001 and must not be retried by the client.
func TestStreamMissingPaneClosesPermanently(t *testing.T) {
	_, srv := newTestApp(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?pane=ghost%3A0.0&cols=80&rows=24"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("expected close, got a frame")
	}
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("err = %v, want close error", err)
	}
	if closeErr.Code != 4001 {
		t.Fatalf("close code = %d, want 4001", closeErr.Code)
	}
	if closeErr.Text != "Pane not found" {
		t.Fatalf("close reason = %q", closeErr.Text)
	}
}
