// Package git wraps the git command line. It is the only package in
// gitsession that starts subprocesses.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fakeyudi/gitsession/internal/logger"
)

// Output is the captured result of one git invocation.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes git with args in dir, feeding stdin when non-empty.
// A non-zero exit is reported through Output.ExitCode, not err; err is
// reserved for failures to start or wait for the process.
// This abstraction allows mocking in tests.
type Runner func(ctx context.Context, dir, stdin string, args ...string) (Output, error)

// ExecRunner runs git as a real subprocess.
func ExecRunner(ctx context.Context, dir, stdin string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
	return out, nil
}

// CommandError is returned by strict calls when git exits non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Stdout   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Client runs git commands pinned to a repository directory.
type Client struct {
	Dir    string
	Runner Runner       // if nil, uses ExecRunner
	Log    *slog.Logger // if nil, uses the shared logger
}

// New returns a Client for the repository at dir.
func New(dir string) *Client {
	return &Client{Dir: dir}
}

type runConfig struct {
	dir    string
	stdin  string
	strict bool
}

// RunOption adjusts a single Run call.
type RunOption func(*runConfig)

// InDir runs the command in path instead of the client directory. Relative
// paths are resolved against the client directory.
func InDir(path string) RunOption {
	return func(c *runConfig) { c.dir = path }
}

// WithStdin feeds s to the command's standard input.
func WithStdin(s string) RunOption {
	return func(c *runConfig) { c.stdin = s }
}

// NonStrict disables the non-zero exit check so the caller can inspect
// Output.ExitCode itself.
func NonStrict() RunOption {
	return func(c *runConfig) { c.strict = false }
}

// Run executes git with args. In strict mode (the default) a non-zero exit
// is logged and returned as *CommandError.
func (c *Client) Run(ctx context.Context, args []string, opts ...RunOption) (Output, error) {
	rc := runConfig{dir: c.Dir, strict: true}
	for _, opt := range opts {
		opt(&rc)
	}
	if rc.dir != c.Dir && !filepath.IsAbs(rc.dir) {
		rc.dir = filepath.Join(c.Dir, rc.dir)
	}

	runner := c.Runner
	if runner == nil {
		runner = ExecRunner
	}

	log := c.logger()
	log.Debug("git", "dir", rc.dir, "args", strings.Join(args, " "))

	out, err := runner(ctx, rc.dir, rc.stdin, args...)
	if err != nil {
		log.Error("git command could not run", "args", strings.Join(args, " "), "dir", rc.dir, "err", err)
		return out, fmt.Errorf("running git %s: %w", strings.Join(args, " "), err)
	}
	if rc.strict && out.ExitCode != 0 {
		log.Error("git command failed",
			"command", "git "+strings.Join(args, " "),
			"dir", rc.dir,
			"exit_code", out.ExitCode,
			"stderr", out.Stderr,
		)
		return out, &CommandError{Args: args, ExitCode: out.ExitCode, Stderr: out.Stderr, Stdout: out.Stdout}
	}
	return out, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logger.Component("git")
}
