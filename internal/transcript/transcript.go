// Package transcript reads Claude Code JSONL transcripts and renders them
// as Markdown.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fakeyudi/gitsession/internal/logger"
)

// Record is one line of a transcript.
type Record struct {
	Type      string   `json:"type"`
	UUID      string   `json:"uuid"`
	Timestamp string   `json:"timestamp"`
	SessionID string   `json:"sessionId"`
	GitBranch string   `json:"gitBranch"`
	IsMeta    bool     `json:"isMeta"`
	Message   *Message `json:"message"`
}

// Message is the payload of user and assistant records. Content is either a
// JSON string or an array of typed blocks.
type Message struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *Usage          `json:"usage"`
}

// Usage carries token accounting for assistant messages.
type Usage struct {
	OutputTokens *int `json:"output_tokens"`
}

type block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// noiseTypes are record types that carry no conversation.
var noiseTypes = map[string]bool{
	"file-history-snapshot": true,
	"system":                true,
}

// IsNoise reports whether r should be left out of a rendered transcript.
func IsNoise(r Record) bool {
	return noiseTypes[r.Type] || r.IsMeta
}

// Parse reads JSONL records from r. Undecodable lines are skipped and
// counted; only read errors are returned.
func Parse(r io.Reader) (records []Record, skipped int, err error) {
	log := logger.Component("transcript")
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(text, &rec); err != nil {
			log.Warn("skipping unparseable transcript line", "line", line, "err", err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("reading transcript: %w", err)
	}
	return records, skipped, nil
}

// ReadFile parses the transcript at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()
	records, _, err := Parse(f)
	return records, err
}

// Conversation drops noise records and orders the rest by timestamp.
func Conversation(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if !IsNoise(r) {
			out = append(out, r)
		}
	}
	// ISO-8601 timestamps in one zone sort lexically.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

var ansiEscape = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// StripANSI removes terminal escape sequences.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// Text flattens message content. Text blocks are kept verbatim; tool use
// and tool result blocks are rendered as fenced JSON.
func (m *Message) Text() string {
	if m == nil || len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(m.Content, &raws); err != nil {
		return string(m.Content)
	}
	var parts []string
	for _, raw := range raws {
		var b block
		if err := json.Unmarshal(raw, &b); err != nil {
			continue
		}
		switch b.Type {
		case "text":
			parts = append(parts, b.Text)
		case "tool_use", "tool_result":
			var compact bytes.Buffer
			if err := json.Compact(&compact, raw); err != nil {
				compact.Write(raw)
			}
			parts = append(parts, "```\n"+compact.String()+"\n```")
		}
	}
	return strings.Join(parts, "\n")
}

// FirstText returns the first text block, or the whole content when it is
// a plain string.
func (m *Message) FirstText() string {
	if m == nil || len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var blocks []block
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return ""
	}
	for _, b := range blocks {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}

// IsPrompt reports whether r was typed by the user. Tool results are also
// "user" records but carry block content instead of a string.
func (r Record) IsPrompt() bool {
	if r.Type != "user" || r.Message == nil {
		return false
	}
	var s string
	return json.Unmarshal(r.Message.Content, &s) == nil
}

// Time parses the record timestamp, returning the zero time if it is
// missing or malformed.
func (r Record) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// displayTime renders an ISO timestamp as "2006-01-02 15:04:05", falling
// back to the raw string.
func displayTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}
