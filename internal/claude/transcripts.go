package claude

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// projectsDir is the transcript root relative to the user home.
	projectsDir = ".claude/projects"

	// tailReadBytes is how much of a transcript tail is read when deriving
	// status. Transcript lines are far smaller than this, so the window
	// always contains at least one complete line of a non-empty file.
	tailReadBytes = 10 * 1024

	// userThinkingWindow is how long after a user-type line the session still
	// counts as thinking. Generous because the assistant may spend a long
	// time on tools before writing its own line.
	userThinkingWindow = 60 * time.Second

	// assistantThinkingWindow is how long after an assistant-type line the
	// session still counts as thinking. Assistant lines stream frequently
	// mid-turn, so a short window suffices.
	assistantThinkingWindow = 3 * time.Second
)

// ProjectSlug converts an absolute project path into its transcript directory
// name: every path separator becomes a dash, leading slash included.
func ProjectSlug(projectPath string) string {
	return strings.ReplaceAll(projectPath, "/", "-")
}

// sessionIDFromPath extracts the session id from a transcript file path, or
// "" when the path is not a .jsonl transcript.
func sessionIDFromPath(path string) string {
	base := filepath.Base(path)
	id, ok := strings.CutSuffix(base, ".jsonl")
	if !ok {
		return ""
	}
	return id
}

// deriveStatus reads the transcript tail and classifies the session:
//
//   - last line type "summary": the turn is wrapped up -> done
//   - last line type "user": thinking while the file stays fresh (the
//     assistant is working on the prompt), done once it goes stale
//   - last line type "assistant": thinking only while actively streaming
//   - anything else, or an unreadable/unparseable tail: idle
func deriveStatus(path string, now time.Time) Status {
	info, err := os.Stat(path)
	if err != nil {
		return StatusIdle
	}
	line := lastCompleteLine(path, info.Size())
	if len(line) == 0 {
		return StatusIdle
	}
	var rec transcriptLine
	if err := json.Unmarshal(line, &rec); err != nil {
		return StatusIdle
	}
	age := now.Sub(info.ModTime())
	switch rec.Type {
	case "summary":
		return StatusDone
	case "user":
		if age < userThinkingWindow {
			return StatusThinking
		}
		return StatusDone
	case "assistant":
		if age < assistantThinkingWindow {
			return StatusThinking
		}
		return StatusDone
	default:
		return StatusIdle
	}
}

// lastCompleteLine returns the last newline-terminated line within the final
// tailReadBytes of the file. A trailing partial line (a write in progress)
// is ignored in favor of the line before it.
func lastCompleteLine(path string, size int64) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	offset := size - tailReadBytes
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil
	}

	// Drop anything after the final newline: it is an incomplete line.
	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		// No newline in the window. If we read the whole file, the single
		// unterminated line is all there is; take it.
		if offset == 0 {
			return bytes.TrimSpace(buf)
		}
		return nil
	}
	buf = buf[:end]
	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
		buf = buf[i+1:]
	}
	// When the window starts mid-line the remaining prefix is truncated JSON;
	// it fails to parse and the session reads as idle, which is the safe
	// fallback.
	return bytes.TrimSpace(buf)
}

// latestTranscript finds the most recently modified transcript in a project
// directory. Returns the session id and file path, or "" when the directory
// has no transcripts.
func latestTranscript(dir string) (sessionID, path string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", ""
	}
	var newest time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if path == "" || info.ModTime().After(newest) {
			newest = info.ModTime()
			sessionID = strings.TrimSuffix(e.Name(), ".jsonl")
			path = filepath.Join(dir, e.Name())
		}
	}
	return sessionID, path
}

// readIndexSummaries loads sessionId -> summary from an optional
// sessions-index.json next to the transcripts. Missing or malformed index
// files yield nil.
func readIndexSummaries(dir string) map[string]string {
	raw, err := os.ReadFile(filepath.Join(dir, "sessions-index.json"))
	if err != nil {
		return nil
	}
	var entries []indexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.SessionID != "" {
			out[e.SessionID] = e.Summary
		}
	}
	return out
}
