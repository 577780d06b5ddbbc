// Package testutil builds throwaway git repositories for tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RequireGit skips the test when git is not installed.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available on PATH")
	}
}

// IsolateGitConfig points git at an empty global config so the developer's
// own settings (signing, hooks, templates) cannot leak into tests.
func IsolateGitConfig(t *testing.T) {
	t.Helper()
	global := filepath.Join(t.TempDir(), "gitconfig")
	if err := os.WriteFile(global, nil, 0o644); err != nil {
		t.Fatalf("write global gitconfig: %v", err)
	}
	t.Setenv("GIT_CONFIG_GLOBAL", global)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
}

// NewRepo creates a repository on branch main with one commit containing
// README.md and returns its path.
func NewRepo(t *testing.T) string {
	t.Helper()
	RequireGit(t)
	IsolateGitConfig(t)

	dir := t.TempDir()
	// Resolve symlinks (macOS /var -> /private/var) so paths compare equal
	// to what git reports.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	initRepo(t, dir)
	return dir
}

// AddSubmodule creates a nested repository at path inside super, registers
// it in .gitmodules, and commits both to the superproject.
func AddSubmodule(t *testing.T, super, path string) string {
	t.Helper()
	sub := filepath.Join(super, path)
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir submodule: %v", err)
	}
	initRepo(t, sub)

	entry := "[submodule \"" + path + "\"]\n\tpath = " + path + "\n\turl = ./" + path + "\n"
	f, err := os.OpenFile(filepath.Join(super, ".gitmodules"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open .gitmodules: %v", err)
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		t.Fatalf("write .gitmodules: %v", err)
	}
	f.Close()

	Git(t, super, "add", ".gitmodules", path)
	Git(t, super, "commit", "-q", "-m", "Add submodule "+path)
	return sub
}

// Git runs git in dir and fails the test on a non-zero exit.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to name inside dir, creating parents.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// CommitCount returns the number of commits reachable from HEAD.
func CommitCount(t *testing.T, dir string) int {
	t.Helper()
	out := Git(t, dir, "rev-list", "--count", "HEAD")
	n := 0
	for _, r := range out {
		n = n*10 + int(r-'0')
	}
	return n
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	Git(t, dir, "init", "-q")
	Git(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	Git(t, dir, "config", "user.email", "test@example.com")
	Git(t, dir, "config", "user.name", "Test User")
	Git(t, dir, "config", "commit.gpgsign", "false")
	Git(t, dir, "config", "tag.gpgsign", "false")
	WriteFile(t, dir, "README.md", "# test\n")
	Git(t, dir, "add", ".")
	Git(t, dir, "commit", "-q", "-m", "Initial commit")
}
