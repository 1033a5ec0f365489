package wsserver

import (
	"encoding/json"
	"testing"
)

func TestParseInboundResize(t *testing.T) {
	msg, ok := ParseInbound([]byte(`{"type":"resize","cols":120,"rows":30}`))
	if !ok {
		t.Fatal("resize not recognized")
	}
	if msg.Cols != 120 || msg.Rows != 30 {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestParseInboundKeys(t *testing.T) {
	msg, ok := ParseInbound([]byte(`{"type":"keys","keys":"ls\r"}`))
	if !ok {
		t.Fatal("keys not recognized")
	}
	if msg.Keys != "ls\r" {
		t.Fatalf("keys = %q", msg.Keys)
	}
}

func TestParseInboundRawFallthrough(t *testing.T) {
	cases := [][]byte{
		[]byte("plain keystrokes"),
		[]byte(`{"type":"unknown"}`),
		[]byte(`{broken json`),
		[]byte(""),
		[]byte("x{looks like json later}"),
	}
	for _, raw := range cases {
		if _, ok := ParseInbound(raw); ok {
			t.Errorf("ParseInbound(%q) recognized, want raw fallthrough", raw)
		}
	}
}

func TestControlEnvelopes(t *testing.T) {
	raw, err := json.Marshal(NewSessionChanged("work"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"session-changed","session":"work"}` {
		t.Fatalf("session-changed = %s", raw)
	}

	info, err := json.Marshal(NewPaneInfo(map[string]string{"target": "main:0.0"}))
	if err != nil {
		t.Fatal(err)
	}
	if string(info) != `{"type":"pane-info","pane":{"target":"main:0.0"}}` {
		t.Fatalf("pane-info = %s", info)
	}
}
