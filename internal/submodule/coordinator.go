// Package submodule mirrors session branches into the submodules of a
// superproject and restores their prior branches afterwards.
//
// Every operation is best-effort: a failure in one submodule is recorded as
// a warning and the remaining submodules are still processed.
package submodule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gitconfig "github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/fakeyudi/gitsession/internal/git"
	"github.com/fakeyudi/gitsession/internal/largefile"
	"github.com/fakeyudi/gitsession/internal/logger"
	"github.com/fakeyudi/gitsession/internal/message"
)

// Actions reported in ModuleResult.
const (
	ActionBranched  = "branched"
	ActionCommitted = "committed"
	ActionClean     = "nothing to commit"
	ActionRestored  = "restored"
	ActionSkipped   = "skipped"
	ActionFailed    = "failed"
)

// ModuleResult is the outcome of one operation in one submodule.
type ModuleResult struct {
	Path   string
	Action string
	Err    error
}

// Report aggregates per-submodule results. Warnings holds one human
// readable line per failure or skip.
type Report struct {
	Results  []ModuleResult
	Warnings []string
}

func (r *Report) add(path, action string, err error) {
	r.Results = append(r.Results, ModuleResult{Path: path, Action: action, Err: err})
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Options configures a Coordinator.
type Options struct {
	// RecordPath is where prior branches are persisted. Defaults to
	// RecordFile inside the superproject's git dir.
	RecordPath  string
	Signature   string
	MaxFileSize int64
	Now         func() time.Time
	Log         *slog.Logger
}

// Coordinator runs git operations in each submodule declared by the
// superproject at client.Dir.
type Coordinator struct {
	client *git.Client
	opts   Options
	log    *slog.Logger
}

// NewCoordinator returns a Coordinator for the superproject client points at.
func NewCoordinator(client *git.Client, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = logger.Component("submodule")
	}
	return &Coordinator{client: client, opts: opts, log: log}
}

// Discover returns submodule paths in .gitmodules declaration order. A
// missing .gitmodules yields no paths and no error.
func (c *Coordinator) Discover(ctx context.Context) ([]string, error) {
	f, err := os.Open(filepath.Join(c.client.Dir, ".gitmodules"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening .gitmodules: %w", err)
	}
	defer f.Close()

	cfg := gitconfig.New()
	if err := gitconfig.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing .gitmodules: %w", err)
	}

	var paths []string
	for _, sub := range cfg.Section("submodule").Subsections {
		if p := sub.Options.Get("path"); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (c *Coordinator) recordPath(ctx context.Context) (string, error) {
	if c.opts.RecordPath != "" {
		return c.opts.RecordPath, nil
	}
	gitDir, err := c.client.GitDir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, RecordFile), nil
}

// discover returns the declared submodules that are checked out. git run in
// an uninitialized submodule directory would walk up and operate on the
// superproject, so those are skipped with a warning.
func (c *Coordinator) discover(ctx context.Context, r *Report) []string {
	paths, err := c.Discover(ctx)
	if err != nil {
		c.log.Warn("submodule discovery failed", "err", err)
		r.warn("submodule discovery failed: %v", err)
	}
	var ready []string
	for _, path := range paths {
		if !c.initialized(path) {
			c.log.Warn("submodule not initialized, skipping", "path", path)
			r.warn("submodule %s: not initialized", path)
			r.add(path, ActionSkipped, nil)
			continue
		}
		ready = append(ready, path)
	}
	return ready
}

// initialized reports whether path holds its own repository, either a .git
// directory or the .git file git writes for checked out submodules.
func (c *Coordinator) initialized(path string) bool {
	_, err := os.Stat(filepath.Join(c.client.Dir, path, ".git"))
	return err == nil
}

// StartInSubmodules records each submodule's current branch and creates
// branch inside it, then persists the recorded branches.
func (c *Coordinator) StartInSubmodules(ctx context.Context, branch string) Report {
	var r Report
	var entries []Entry
	for _, path := range c.discover(ctx, &r) {
		log := c.log.With("path", path)
		prior, err := c.priorRef(ctx, path)
		if err != nil {
			log.Warn("could not read submodule branch", "err", err)
			r.warn("submodule %s: could not read branch: %v", path, err)
			r.add(path, ActionFailed, err)
			continue
		}
		entries = append(entries, Entry{Path: path, Branch: prior})

		if _, err := c.client.Run(ctx, []string{"checkout", "-b", branch}, git.InDir(path)); err != nil {
			log.Warn("could not create session branch in submodule", "branch", branch, "err", err)
			r.warn("submodule %s: could not create branch %s: %v", path, branch, err)
			r.add(path, ActionFailed, err)
			continue
		}
		log.Info("submodule switched to session branch", "branch", branch, "prior", prior)
		r.add(path, ActionBranched, nil)
	}

	if len(entries) == 0 {
		return r
	}
	recordPath, err := c.recordPath(ctx)
	if err == nil {
		err = WriteParents(recordPath, entries)
	}
	if err != nil {
		c.log.Warn("could not persist submodule parents", "err", err)
		r.warn("could not persist submodule parents: %v", err)
	}
	return r
}

// priorRef returns the submodule's branch, or its commit id when detached.
func (c *Coordinator) priorRef(ctx context.Context, path string) (string, error) {
	branch, err := c.client.CurrentBranch(ctx, git.InDir(path))
	if err != nil {
		return "", err
	}
	if branch != "HEAD" {
		return branch, nil
	}
	return c.client.HeadCommit(ctx, git.InDir(path))
}

// CommitInSubmodules stages and commits everything in each submodule. A
// submodule with nothing to commit is not a failure.
func (c *Coordinator) CommitInSubmodules(ctx context.Context, branch string, final bool) Report {
	var r Report
	kind := message.ForFinal(final)
	for _, path := range c.discover(ctx, &r) {
		log := c.log.With("path", path)
		if err := c.client.StageAll(ctx, git.InDir(path)); err != nil {
			log.Warn("could not stage submodule changes", "err", err)
			r.warn("submodule %s: could not stage changes: %v", path, err)
			r.add(path, ActionFailed, err)
			continue
		}

		msg := message.Commit(kind, branch, c.opts.Now(), c.opts.Signature)
		excluded, err := largefile.Exclude(ctx, c.client, filepath.Join(c.client.Dir, path), c.opts.MaxFileSize, git.InDir(path))
		if err != nil {
			log.Warn("large file check failed in submodule", "err", err)
			r.warn("submodule %s: large file check failed: %v", path, err)
		}
		msg += largefile.Section(excluded, c.opts.MaxFileSize)

		committed, err := c.client.Commit(ctx, msg, false, git.InDir(path))
		switch {
		case err != nil:
			log.Warn("submodule commit failed", "err", err)
			r.warn("submodule %s: commit failed: %v", path, err)
			r.add(path, ActionFailed, err)
		case committed:
			log.Info("submodule committed", "kind", kind.String())
			r.add(path, ActionCommitted, nil)
		default:
			r.add(path, ActionClean, nil)
		}
	}
	return r
}

// RestoreSubmodules checks out each submodule's recorded prior branch.
// Dirty submodules are skipped rather than forced, as are submodules with
// no recorded branch.
func (c *Coordinator) RestoreSubmodules(ctx context.Context) Report {
	var r Report
	recordPath, err := c.recordPath(ctx)
	var parents map[string]string
	if err == nil {
		parents, err = ReadParents(recordPath)
	}
	if err != nil {
		c.log.Warn("could not read submodule parents", "err", err)
		r.warn("could not read submodule parents: %v", err)
		return r
	}

	for _, path := range c.discover(ctx, &r) {
		log := c.log.With("path", path)
		dirty, err := c.client.IsDirty(ctx, false, git.InDir(path))
		if err != nil {
			log.Warn("could not read submodule status", "err", err)
			r.warn("submodule %s: could not read status: %v", path, err)
			r.add(path, ActionFailed, err)
			continue
		}
		if dirty {
			log.Warn("submodule has uncommitted changes, not restoring")
			r.warn("submodule %s has uncommitted changes; left on its current branch", path)
			r.add(path, ActionSkipped, nil)
			continue
		}
		prior, ok := parents[path]
		if !ok || prior == "" {
			log.Warn("no recorded branch for submodule")
			r.warn("submodule %s: no recorded branch to restore", path)
			r.add(path, ActionSkipped, nil)
			continue
		}
		if _, err := c.client.Run(ctx, []string{"checkout", prior}, git.InDir(path)); err != nil {
			log.Warn("submodule checkout failed", "branch", prior, "err", err)
			r.warn("submodule %s: could not check out %s: %v", path, prior, err)
			r.add(path, ActionFailed, err)
			continue
		}
		log.Info("submodule restored", "branch", prior)
		r.add(path, ActionRestored, nil)
	}
	return r
}
