package transcript

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fakeyudi/gitsession/internal/atomicfile"
)

// SummaryFile is written next to converted transcripts in folder mode.
const SummaryFile = "CHAT_SESSIONS_SUMMARY.md"

// Render writes records as a Markdown chat log titled with stem.
func Render(w io.Writer, stem string, records []Record, converted time.Time) error {
	conv := Conversation(records)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Chat Log: %s\n\n", stem)
	fmt.Fprintf(&sb, "**Converted**: %s\n\n", converted.Format("2006-01-02 15:04:05"))

	if len(conv) > 0 {
		first := conv[0]
		sb.WriteString("## Session Information\n\n")
		fmt.Fprintf(&sb, "- **Session ID**: `%s`\n", orUnknown(first.SessionID))
		fmt.Fprintf(&sb, "- **Git Branch**: `%s`\n", orUnknown(first.GitBranch))
		fmt.Fprintf(&sb, "- **Total Messages**: %d\n\n", len(conv))
	}
	sb.WriteString("---\n\n## Conversation\n\n")

	for _, r := range conv {
		if entry := formatRecord(r); entry != "" {
			sb.WriteString(entry)
			sb.WriteString("\n---\n\n")
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func formatRecord(r Record) string {
	content := strings.TrimSpace(StripANSI(r.Message.Text()))
	if content == "" {
		return ""
	}
	ts := displayTime(r.Timestamp)

	switch {
	case r.IsPrompt():
		return fmt.Sprintf("### 👤 User - %s [%s]\n\n%s\n", ts, r.UUID, content)
	case r.Type == "user":
		return fmt.Sprintf("### 🤖 Tool Use - %s [%s]\n\n%s\n", ts, r.UUID, content)
	case r.Type == "assistant":
		model := "unknown"
		if r.Message.Model != "" {
			model = r.Message.Model
		}
		header := fmt.Sprintf("### 🤖 Assistant (%s) - %s [%s]", model, ts, r.UUID)
		if u := r.Message.Usage; u != nil && u.OutputTokens != nil {
			header += fmt.Sprintf(" · %d tokens", *u.OutputTokens)
		}
		return header + "\n\n" + content + "\n"
	default:
		return fmt.Sprintf("### %s [%s]\n\n%s\n", ts, r.UUID, content)
	}
}

// ConvertFile renders the transcript at src into dst. An empty dst writes
// next to src with a .md extension. It returns the path written.
func ConvertFile(src, dst string) (string, error) {
	records, err := ReadFile(src)
	if err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if dst == "" {
		dst = filepath.Join(filepath.Dir(src), stem+".md")
	}

	var sb strings.Builder
	if err := Render(&sb, stem, records, time.Now()); err != nil {
		return "", err
	}
	if err := atomicfile.WriteFile(dst, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", dst, err)
	}
	return dst, nil
}

// ConvertDir converts every *.jsonl file in dir. Output goes to outDir, or
// next to each source when outDir is empty.
func ConvertDir(dir, outDir string) ([]string, error) {
	sources, err := jsonlFiles(dir)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, src := range sources {
		dst := ""
		if outDir != "" {
			stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
			dst = filepath.Join(outDir, stem+".md")
		}
		path, err := ConvertFile(src, dst)
		if err != nil {
			return written, fmt.Errorf("converting %s: %w", filepath.Base(src), err)
		}
		written = append(written, path)
	}
	return written, nil
}

// Summary describes one transcript file.
type Summary struct {
	File     string
	Messages int
	Branch   string
	Started  string
	Ended    string
}

// Summarize reads every *.jsonl file in dir in name order.
func Summarize(dir string) ([]Summary, error) {
	sources, err := jsonlFiles(dir)
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, src := range sources {
		records, err := ReadFile(src)
		if err != nil {
			return nil, err
		}
		s := Summary{File: filepath.Base(src)}
		for _, r := range records {
			if IsNoise(r) {
				continue
			}
			s.Messages++
			if r.Timestamp != "" {
				if s.Started == "" {
					s.Started = r.Timestamp
				}
				s.Ended = r.Timestamp
			}
			if s.Branch == "" {
				s.Branch = r.GitBranch
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteSummary writes SummaryFile for dir into outDir (or dir itself).
func WriteSummary(dir, outDir string) (string, error) {
	summaries, err := Summarize(dir)
	if err != nil {
		return "", err
	}
	if outDir == "" {
		outDir = dir
	}

	var sb strings.Builder
	sb.WriteString("# Chat Sessions Summary\n\n")
	fmt.Fprintf(&sb, "**Generated**: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Total Sessions**: %d\n\n---\n\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(&sb, "## %s\n\n", strings.TrimSuffix(s.File, filepath.Ext(s.File)))
		fmt.Fprintf(&sb, "- **File**: `%s`\n", s.File)
		fmt.Fprintf(&sb, "- **Messages**: %d\n", s.Messages)
		if s.Branch != "" {
			fmt.Fprintf(&sb, "- **Branch**: `%s`\n", s.Branch)
		}
		if s.Started != "" {
			fmt.Fprintf(&sb, "- **Started**: %s\n", displayTime(s.Started))
		}
		if s.Ended != "" {
			fmt.Fprintf(&sb, "- **Ended**: %s\n", displayTime(s.Ended))
		}
		sb.WriteString("\n")
	}

	path := filepath.Join(outDir, SummaryFile)
	if err := atomicfile.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}
	return path, nil
}

func jsonlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
