package claudecode

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/papercomputeco/engram/pkg/extract/parse"
	"github.com/papercomputeco/engram/pkg/session"
)

// maxLine bounds a single transcript line. Tool results can be large.
const maxLine = 10 * 1024 * 1024

// TranscriptMessage is the message field within a JSONL entry.
type TranscriptMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// TranscriptEntry is a single line in a Claude Code JSONL transcript.
// Current transcripts nest the message under "message"; older ones carry
// role and content at the top level.
type TranscriptEntry struct {
	Type      string             `json:"type"`
	Timestamp string             `json:"timestamp"`
	SessionID string             `json:"sessionId"`
	CWD       string             `json:"cwd"`
	Message   *TranscriptMessage `json:"message"`

	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// RoleAndContent returns the role and flattened text of the entry.
func (e *TranscriptEntry) RoleAndContent() (string, string) {
	if e.Message != nil && e.Message.Role != "" {
		return e.Message.Role, parse.Text(e.Message.Content)
	}
	return e.Role, parse.Text(e.Content)
}

// Transcript is the decoded content of one JSONL file.
type Transcript struct {
	Messages  []session.Message
	CWD       string
	CreatedAt time.Time
}

// ParseTranscript reads a JSONL transcript. Malformed lines are skipped.
func ParseTranscript(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t := &Transcript{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}

		if t.CWD == "" {
			t.CWD = entry.CWD
		}

		role, content := entry.RoleAndContent()
		if !session.IsConversationRole(role) {
			continue
		}

		ts := parse.Time(entry.Timestamp)
		if t.CreatedAt.IsZero() {
			t.CreatedAt = ts
		}
		t.Messages = parse.AppendMessage(t.Messages, role, content, ts)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return t, nil
}
