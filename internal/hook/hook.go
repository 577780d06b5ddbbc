// Package hook implements the agent Stop hook: it archives the transcript
// under llm-sessions/<branch>/, appends the latest exchange to a
// conversation log, and on session branches commits the working tree.
package hook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fakeyudi/gitsession/internal/git"
	"github.com/fakeyudi/gitsession/internal/largefile"
	"github.com/fakeyudi/gitsession/internal/logger"
	"github.com/fakeyudi/gitsession/internal/transcript"
)

// SessionsDir is the directory, relative to the repository root, that
// receives archived transcripts.
const SessionsDir = "llm-sessions"

// previewLen bounds the prompt and response quoted in commit messages.
const previewLen = 500

var (
	// ErrMalformedInput is returned when stdin is not a JSON hook payload.
	ErrMalformedInput = errors.New("invalid JSON input")
	// ErrNoTranscript is returned when the payload has no transcript path.
	ErrNoTranscript = errors.New("no transcript path provided")
)

// Input is the JSON payload the agent writes to the hook's stdin.
type Input struct {
	TranscriptPath string `json:"transcript_path"`
	SessionID      string `json:"session_id"`
	Cwd            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name,omitempty"`
}

// Options configures Run.
type Options struct {
	Prefix      string // session branch prefix; commits happen only on "{Prefix}-"
	MaxFileSize int64
	Now         func() time.Time
	Log         *slog.Logger
	// Dir is used when the payload has no cwd. Defaults to the process
	// working directory.
	Dir string
}

// Outcome reports what one hook run did.
type Outcome struct {
	Branch         string
	TranscriptCopy string
	Conversation   string
	Rendered       string
	Committed      bool
	Excluded       []largefile.File
	// Warnings holds failures that do not fail the hook, such as a
	// rejected interaction commit.
	Warnings []string
}

// ExitCode maps a Run error to the process exit status the agent expects.
func ExitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

// Run handles one hook invocation read from stdin.
func Run(ctx context.Context, stdin io.Reader, opts Options) (Outcome, error) {
	var out Outcome
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = logger.Component("hook")
	}

	var in Input
	if err := json.NewDecoder(stdin).Decode(&in); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if in.TranscriptPath == "" {
		return out, ErrNoTranscript
	}
	log = log.With("session_id", in.SessionID)

	dir := in.Cwd
	if dir == "" {
		dir = opts.Dir
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return out, err
		}
		dir = wd
	}

	client := git.New(dir)
	top, err := client.TopLevel(ctx)
	if err != nil {
		return out, fmt.Errorf("locating repository: %w", err)
	}
	client.Dir = top

	branch, err := client.CurrentBranch(ctx)
	if err != nil || branch == "" || branch == "HEAD" {
		branch = "detached-HEAD"
	}
	out.Branch = branch
	folder := FolderName(branch)
	sessionDir := filepath.Join(top, SessionsDir, folder)

	out.TranscriptCopy = filepath.Join(sessionDir, "claude_transcript", filepath.Base(in.TranscriptPath))
	if err := copyFile(in.TranscriptPath, out.TranscriptCopy); err != nil {
		return out, fmt.Errorf("archiving transcript: %w", err)
	}

	var errs []error
	records, err := transcript.ReadFile(out.TranscriptCopy)
	if err != nil {
		errs = append(errs, err)
	}
	interaction, err := transcript.LastInteraction(transcript.Conversation(records))
	if err != nil {
		log.Warn("could not extract interaction from transcript", "err", err)
	}

	out.Conversation = filepath.Join(sessionDir, "conversation-"+folder+".md")
	if err := AppendConversation(out.Conversation, interaction, opts.Now()); err != nil {
		errs = append(errs, err)
	}
	if rendered, err := transcript.ConvertFile(out.TranscriptCopy, ""); err != nil {
		log.Warn("could not render transcript", "err", err)
	} else {
		out.Rendered = rendered
	}

	// The commit is attempted even when the conversation log failed.
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "session"
	}
	if strings.HasPrefix(branch, prefix+"-") {
		committed, excluded, err := commitInteraction(ctx, client, top, interaction, opts.MaxFileSize)
		out.Committed = committed
		out.Excluded = excluded
		if err != nil {
			// A failed commit is reported but the hook still succeeds, so
			// the agent is not blocked by a git problem in the project.
			log.Warn("interaction commit failed", "branch", branch, "err", err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("commit failed: %v", err))
		} else if committed {
			log.Info("created commit for this interaction", "branch", branch)
		}
	} else {
		log.Debug("not a session branch, skipping commit", "branch", branch)
	}
	return out, errors.Join(errs...)
}

// FolderName makes a branch name usable as a single directory name.
func FolderName(branch string) string {
	return strings.NewReplacer("/", "-", " ", "_").Replace(branch)
}

// CommitMessage renders the interaction commit message.
func CommitMessage(in Interaction) string {
	prompt := preview(in.Prompt, "(no prompt)")
	response := preview(in.Response, "(no response)")
	return "LLM Code Interaction\n\nPrompt: " + prompt + "\n\nResponse: " + response
}

// Interaction is the exchange recorded by a hook run.
type Interaction = transcript.Interaction

func preview(s, empty string) string {
	if s == "" {
		return empty
	}
	r := []rune(s)
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return string(r)
}

func commitInteraction(ctx context.Context, client *git.Client, top string, in Interaction, limit int64) (bool, []largefile.File, error) {
	if err := client.StageAll(ctx); err != nil {
		return false, nil, err
	}
	staged, err := client.StagedFiles(ctx)
	if err != nil {
		return false, nil, err
	}
	if len(staged) == 0 {
		return false, nil, nil
	}
	excluded, err := largefile.Exclude(ctx, client, top, limit)
	if err != nil {
		return false, nil, err
	}
	msg := CommitMessage(in) + largefile.Section(excluded, limit)
	committed, err := client.Commit(ctx, msg, false)
	return committed, excluded, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
