package main

import (
	"net/http"
	"time"
)

// inputHistoryCapacity bounds the recall ring. In-memory only; history does
// not survive a restart.
const inputHistoryCapacity = 200

// inputEntry is one recorded panes.input payload.
type inputEntry struct {
	Target string    `json:"target"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

// inputRing is a fixed-capacity ring of recent input entries.
type inputRing struct {
	entries []inputEntry
	next    int
	full    bool
}

func (r *inputRing) append(e inputEntry) {
	if r.entries == nil {
		r.entries = make([]inputEntry, inputHistoryCapacity)
	}
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// list returns entries oldest-first.
func (r *inputRing) list() []inputEntry {
	if r.entries == nil {
		return []inputEntry{}
	}
	if !r.full {
		out := make([]inputEntry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]inputEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

func (a *App) recordInput(target, text string) {
	a.inputMu.Lock()
	a.inputHistory.append(inputEntry{Target: target, Text: text, Time: time.Now()})
	a.inputMu.Unlock()
}

func (a *App) handleInputHistory(w http.ResponseWriter, r *http.Request) {
	a.inputMu.Lock()
	entries := a.inputHistory.list()
	a.inputMu.Unlock()
	writeJSON(w, http.StatusOK, entries)
}
