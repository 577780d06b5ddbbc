package git

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// CurrentBranch returns the abbreviated name of HEAD ("HEAD" when detached).
func (c *Client) CurrentBranch(ctx context.Context, opts ...RunOption) (string, error) {
	out, err := c.Run(ctx, []string{"rev-parse", "--abbrev-ref", "HEAD"}, opts...)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// HeadCommit returns the full commit id of HEAD.
func (c *Client) HeadCommit(ctx context.Context, opts ...RunOption) (string, error) {
	out, err := c.Run(ctx, []string{"rev-parse", "HEAD"}, opts...)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// HasHead reports whether HEAD points at a commit. It is false in a freshly
// initialised repository.
func (c *Client) HasHead(ctx context.Context, opts ...RunOption) (bool, error) {
	out, err := c.Run(ctx, []string{"rev-parse", "--verify", "--quiet", "HEAD"}, append(opts, NonStrict())...)
	if err != nil {
		return false, err
	}
	return out.ExitCode == 0, nil
}

// Status returns `git status --porcelain` output. When ignoreSubmoduleDirt is
// set, submodules whose only change is a dirty working tree are not reported.
func (c *Client) Status(ctx context.Context, ignoreSubmoduleDirt bool, opts ...RunOption) (string, error) {
	args := []string{"status", "--porcelain"}
	if ignoreSubmoduleDirt {
		args = append(args, "--ignore-submodules=dirty")
	}
	out, err := c.Run(ctx, args, opts...)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// IsDirty reports whether the working tree has uncommitted changes.
func (c *Client) IsDirty(ctx context.Context, ignoreSubmoduleDirt bool, opts ...RunOption) (bool, error) {
	status, err := c.Status(ctx, ignoreSubmoduleDirt, opts...)
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// BranchExists reports whether a local branch called name exists.
func (c *Client) BranchExists(ctx context.Context, name string, opts ...RunOption) (bool, error) {
	args := []string{"rev-parse", "--verify", "--quiet", "refs/heads/" + name}
	out, err := c.Run(ctx, args, append(opts, NonStrict())...)
	if err != nil {
		return false, err
	}
	switch out.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, &CommandError{Args: args, ExitCode: out.ExitCode, Stderr: out.Stderr}
	}
}

// StagedFiles lists paths staged in the index relative to the repository root.
func (c *Client) StagedFiles(ctx context.Context, opts ...RunOption) ([]string, error) {
	out, err := c.Run(ctx, []string{"diff", "--cached", "--name-only", "-z"}, opts...)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range strings.Split(out.Stdout, "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// GitDir returns the absolute path of the repository's control directory.
func (c *Client) GitDir(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, []string{"rev-parse", "--git-dir"})
	if err != nil {
		return "", err
	}
	dir := out.Stdout
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.Dir, dir)
	}
	return dir, nil
}

// TopLevel returns the absolute path of the working tree root.
func (c *Client) TopLevel(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, []string{"rev-parse", "--show-toplevel"})
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// nothingToCommit lists the phrases git prints when a commit has no content.
var nothingToCommit = []string{
	"nothing to commit",
	"nothing added to commit",
	"no changes added to commit",
}

// IsNothingToCommit reports whether err (or the Output it carries) is git
// declining to create an empty commit.
func IsNothingToCommit(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return OutputIsNothingToCommit(Output{Stdout: cmdErr.Stdout, Stderr: cmdErr.Stderr})
}

// OutputIsNothingToCommit is IsNothingToCommit for non-strict calls.
func OutputIsNothingToCommit(out Output) bool {
	text := out.Stdout + "\n" + out.Stderr
	for _, phrase := range nothingToCommit {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// IsNotRepository reports whether err is git's exit code 128, which it uses
// for "not a git repository" and other fatal setup problems.
func IsNotRepository(err error) bool {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode == 128
	}
	return false
}

// Commit records the index with message read from stdin. It reports
// committed=false, with no error, when git finds nothing to commit.
func (c *Client) Commit(ctx context.Context, message string, allowEmpty bool, opts ...RunOption) (bool, error) {
	args := []string{"commit", "-q", "-F", "-"}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	out, err := c.Run(ctx, args, append(opts, WithStdin(message), NonStrict())...)
	if err != nil {
		return false, err
	}
	if out.ExitCode == 0 {
		return true, nil
	}
	if OutputIsNothingToCommit(out) {
		c.logger().Info("nothing to commit")
		return false, nil
	}
	c.logger().Error("git command failed",
		"command", "git "+strings.Join(args, " "),
		"exit_code", out.ExitCode,
		"stderr", out.Stderr,
	)
	return false, &CommandError{Args: args, ExitCode: out.ExitCode, Stderr: out.Stderr, Stdout: out.Stdout}
}

// StageAll runs `git add -A`.
func (c *Client) StageAll(ctx context.Context, opts ...RunOption) error {
	_, err := c.Run(ctx, []string{"add", "-A"}, opts...)
	return err
}
