// Package session implements the experiment session lifecycle: opening a
// session branch, committing snapshots on it, and returning to the branch
// it was started from.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/gitsession/internal/git"
	"github.com/fakeyudi/gitsession/internal/journal"
	"github.com/fakeyudi/gitsession/internal/largefile"
	"github.com/fakeyudi/gitsession/internal/logger"
	"github.com/fakeyudi/gitsession/internal/message"
	"github.com/fakeyudi/gitsession/internal/submodule"
)

// DefaultRemote is pushed to when Push is given no remote.
const DefaultRemote = "origin"

// Journal receives one entry per lifecycle operation.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Options configures a Manager.
type Options struct {
	RepoPath            string
	Prefix              string // defaults to DefaultPrefix
	SessionName         string
	ManageSubmodules    bool
	IgnoreSubmoduleDirt bool
	// StrictReturn refuses to switch back while changes remain after the
	// session was ended. Otherwise git's own checkout checks apply.
	StrictReturn bool
	MaxFileSize  int64 // defaults to largefile.DefaultLimit
	Signature    string
	Remote       string

	Client  *git.Client // defaults to git.New(RepoPath)
	Records RecordStore // nil disables persistence
	Journal Journal     // nil disables journaling
	Now     func() time.Time
	Log     *slog.Logger
}

// Manager owns the session state of one repository. It is not safe for
// concurrent use; callers run one operation at a time.
type Manager struct {
	opts   Options
	client *git.Client
	subs   *submodule.Coordinator
	state  State
	log    *slog.Logger
	closer io.Closer
}

// NewManager validates opts and returns an idle Manager. It does not touch
// the repository; call Refresh (or use Open) to load the current state.
func NewManager(opts Options) (*Manager, error) {
	if opts.RepoPath == "" {
		return nil, errors.New("repository path is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if !ValidPrefix(opts.Prefix) {
		return nil, fmt.Errorf("invalid session prefix %q", opts.Prefix)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = largefile.DefaultLimit
	}
	if opts.Signature == "" {
		opts.Signature = message.DefaultSignature
	}
	if opts.Remote == "" {
		opts.Remote = DefaultRemote
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logger.Component("session")
	}
	client := opts.Client
	if client == nil {
		client = git.New(opts.RepoPath)
	}

	m := &Manager{
		opts:   opts,
		client: client,
		log:    opts.Log,
		state:  State{ManageSubmodules: opts.ManageSubmodules},
	}
	m.subs = submodule.NewCoordinator(client, submodule.Options{
		Signature:   opts.Signature,
		MaxFileSize: opts.MaxFileSize,
		Now:         opts.Now,
	})
	return m, nil
}

// Open resolves the repository containing opts.RepoPath, attaches the
// on-disk session record and journal, restores the recorded parent branch,
// and refreshes the state.
func Open(ctx context.Context, opts Options) (*Manager, error) {
	if opts.RepoPath == "" {
		return nil, errors.New("repository path is required")
	}
	probe := opts.Client
	if probe == nil {
		probe = git.New(opts.RepoPath)
	}
	top, err := probe.TopLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s is not inside a git repository: %w", opts.RepoPath, err)
	}
	client := *probe
	client.Dir = top
	opts.RepoPath = top
	opts.Client = &client

	gitDir, err := client.GitDir(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Records == nil {
		opts.Records = NewRecordStore(gitDir)
	}

	var closer io.Closer
	if opts.Journal == nil {
		j, err := journal.Open(ctx, journal.PathFor(gitDir))
		if err != nil {
			logger.Component("session").Warn("operation journal unavailable", "err", err)
		} else {
			opts.Journal = j
			closer = j
		}
	}

	m, err := NewManager(opts)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	m.closer = closer

	rec, err := m.opts.Records.Load()
	switch {
	case err == nil:
		m.state.ParentBranch = rec.ParentBranch
	case !errors.Is(err, ErrNoRecord):
		m.log.Warn("could not load session record", "err", err)
	}

	// A repository without commits cannot be refreshed yet; Start reports
	// that properly.
	_ = m.Refresh(ctx)
	return m, nil
}

// Close releases the journal opened by Open.
func (m *Manager) Close() error {
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

// State returns a copy of the last refreshed state.
func (m *Manager) State() State { return m.state }

// Options returns the effective options after defaults were applied.
func (m *Manager) Options() Options { return m.opts }

// SetSessionName sets the free-text name used for the next session branch.
func (m *Manager) SetSessionName(name string) { m.opts.SessionName = name }

// SetManageSubmodules toggles submodule propagation.
func (m *Manager) SetManageSubmodules(enabled bool) {
	m.opts.ManageSubmodules = enabled
	m.state.ManageSubmodules = enabled
}

func (m *Manager) now() time.Time { return m.opts.Now() }

// Refresh re-reads branch, HEAD and working tree status. On failure the
// previous state is kept.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresh(ctx, m.log)
}

func (m *Manager) refresh(ctx context.Context, log *slog.Logger) error {
	branch, err := m.client.CurrentBranch(ctx)
	if err != nil {
		log.Error("failed to refresh git status", "err", err)
		return fmt.Errorf("refreshing status: %w", err)
	}
	commit, err := m.client.HeadCommit(ctx)
	if err != nil {
		log.Error("failed to refresh git status", "err", err)
		return fmt.Errorf("refreshing status: %w", err)
	}
	dirty, err := m.client.IsDirty(ctx, m.opts.IgnoreSubmoduleDirt)
	if err != nil {
		log.Error("failed to refresh git status", "err", err)
		return fmt.Errorf("refreshing status: %w", err)
	}

	next := State{
		CurrentBranch:         branch,
		CurrentCommit:         commit,
		ParentBranch:          m.state.ParentBranch,
		HasUncommittedChanges: dirty,
		ManageSubmodules:      m.opts.ManageSubmodules,
	}
	if m.IsSessionBranch(branch) {
		next.IsActive = true
		next.SessionBranch = branch
	}
	m.state = next
	log.Debug("git status refreshed", "branch", branch, "changes", dirty, "active", next.IsActive)
	return nil
}

// track runs fn under a fresh operation id and journals the outcome.
func (m *Manager) track(ctx context.Context, op string, fn func(context.Context, *slog.Logger) (Result, error)) (Result, error) {
	id := uuid.NewString()
	log := m.log.With("op", op, "op_id", id)
	started := m.now()

	res, err := fn(ctx, log)
	res.ID = id
	res.Op = op
	for _, w := range res.Warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Error("operation failed", "err", err)
	}

	if m.opts.Journal != nil {
		entry := journal.Entry{
			ID:         id,
			Op:         op,
			Branch:     res.Branch,
			Outcome:    journal.OutcomeOf(err, len(res.Warnings)),
			Warnings:   res.Warnings,
			StartedAt:  started,
			FinishedAt: m.now(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if jerr := m.opts.Journal.Record(ctx, entry); jerr != nil {
			log.Warn("could not write journal entry", "err", jerr)
		}
	}
	return res, err
}

// Start creates a session branch from the current branch and switches to
// it. Starting while a session is active nests: the active session branch
// becomes the new parent.
func (m *Manager) Start(ctx context.Context) (Result, error) {
	return m.track(ctx, OpStart, m.start)
}

func (m *Manager) start(ctx context.Context, log *slog.Logger) (Result, error) {
	var res Result
	if err := m.refresh(ctx, log); err != nil {
		return res, err
	}

	parent := m.state.CurrentBranch
	if parent == "HEAD" {
		parent = m.state.CurrentCommit
	}
	if m.state.IsActive {
		log.Info("starting nested session", "parent", parent)
	}

	branch, err := m.GenerateBranchName(ctx, m.opts.SessionName)
	if err != nil {
		return res, err
	}
	// Someone may have created the branch since it was probed.
	exists, err := m.client.BranchExists(ctx, branch)
	if err != nil {
		return res, fmt.Errorf("checking branch %s: %w", branch, err)
	}
	if exists {
		return res, &BranchCollisionError{Base: branch, Attempts: 1}
	}
	if _, err := m.client.Run(ctx, []string{"checkout", "-b", branch}); err != nil {
		return res, fmt.Errorf("creating session branch %s: %w", branch, err)
	}

	res.Branch = branch
	m.state.ParentBranch = parent
	started := m.now()
	log = log.With("branch", branch)

	if m.opts.Records != nil {
		rec := &Record{ParentBranch: parent, SessionBranch: branch, SessionName: m.opts.SessionName, StartedAt: started}
		if err := m.opts.Records.Save(rec); err != nil {
			res.warn("could not save session record: %v", err)
		}
	}

	if m.opts.ManageSubmodules {
		res.addReport(m.subs.StartInSubmodules(ctx, branch))
	}

	if err := m.commitInitialState(ctx, log, branch, &res); err != nil {
		return res, fmt.Errorf("session %s: initial commit: %w", branch, err)
	}
	m.tag(ctx, log, message.TagStart, branch, &res)

	if err := m.refresh(ctx, log); err != nil {
		return res, fmt.Errorf("session %s: %w", branch, err)
	}
	log.Info("started experimental session", "parent", parent)
	return res, nil
}

// commitInitialState records the tree the session started from. A clean
// tree gets an empty marker commit so every session has a start commit.
func (m *Manager) commitInitialState(ctx context.Context, log *slog.Logger, branch string, res *Result) error {
	status, err := m.client.Status(ctx, m.opts.IgnoreSubmoduleDirt)
	if err != nil {
		return err
	}
	if status == "" {
		committed, err := m.client.Commit(ctx, message.Commit(message.Start, branch, m.now(), m.opts.Signature), true)
		if err != nil {
			return err
		}
		res.Committed = committed
		log.Info("created empty commit to mark session start")
		return nil
	}

	if err := m.client.StageAll(ctx); err != nil {
		return err
	}
	excluded, err := largefile.Exclude(ctx, m.client, m.opts.RepoPath, m.opts.MaxFileSize)
	if err != nil {
		return err
	}
	res.Excluded = append(res.Excluded, excluded...)

	// Ignore rules and exclusions can leave nothing staged after add -A.
	staged, err := m.client.StagedFiles(ctx)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		log.Info("nothing staged after add; no initial state commit")
		return nil
	}

	msg := message.Commit(message.InitialState, branch, m.now(), m.opts.Signature) +
		largefile.Section(excluded, m.opts.MaxFileSize)
	committed, err := m.client.Commit(ctx, msg, false)
	if err != nil {
		return err
	}
	res.Committed = committed
	log.Info("committed initial session state", "files", len(staged))
	return nil
}

// tag creates an annotated session tag. Failure is only a warning.
func (m *Manager) tag(ctx context.Context, log *slog.Logger, kind message.TagKind, branch string, res *Result) {
	name := message.TagName(kind, branch)
	body := message.Tag(kind, branch, m.now(), m.opts.Signature)
	out, err := m.client.Run(ctx, []string{"tag", "-a", name, "-F", "-"}, git.WithStdin(body), git.NonStrict())
	if err == nil && out.ExitCode != 0 {
		err = &git.CommandError{Args: []string{"tag", "-a", name, "-F", "-"}, ExitCode: out.ExitCode, Stderr: out.Stderr}
	}
	if err != nil {
		res.warn("could not create tag %s: %v", name, err)
		return
	}
	res.Tags = append(res.Tags, name)
	log.Info("created session tag", "tag", name)
}

// Commit snapshots the working tree on the active session branch. A clean
// tree is not an error; Result.Committed reports whether a commit was made.
func (m *Manager) Commit(ctx context.Context, final bool) (Result, error) {
	return m.track(ctx, OpCommit, func(ctx context.Context, log *slog.Logger) (Result, error) {
		return m.commit(ctx, log, final)
	})
}

func (m *Manager) commit(ctx context.Context, log *slog.Logger, final bool) (Result, error) {
	var res Result
	if err := m.refresh(ctx, log); err != nil {
		return res, err
	}
	if !m.state.IsActive {
		return res, &NoActiveSessionError{Op: OpCommit, Branch: m.state.CurrentBranch}
	}
	branch := m.state.SessionBranch
	res.Branch = branch
	if !m.state.HasUncommittedChanges {
		log.Info("no changes to commit")
		return res, nil
	}

	kind := message.ForFinal(final)
	if m.opts.ManageSubmodules {
		res.addReport(m.subs.CommitInSubmodules(ctx, branch, final))
	}

	if err := m.client.StageAll(ctx); err != nil {
		return res, fmt.Errorf("staging changes on %s: %w", branch, err)
	}
	excluded, err := largefile.Exclude(ctx, m.client, m.opts.RepoPath, m.opts.MaxFileSize)
	if err != nil {
		return res, fmt.Errorf("checking file sizes on %s: %w", branch, err)
	}
	res.Excluded = excluded

	msg := message.Commit(kind, branch, m.now(), m.opts.Signature) + largefile.Section(excluded, m.opts.MaxFileSize)
	committed, err := m.client.Commit(ctx, msg, false)
	if err != nil {
		return res, fmt.Errorf("committing on %s: %w", branch, err)
	}
	res.Committed = committed
	if committed {
		log.Info("session commit created", "kind", kind.String(), "branch", branch, "excluded", len(excluded))
	}

	if err := m.refresh(ctx, log); err != nil {
		return res, err
	}
	return res, nil
}

// End closes the active session: remaining changes get a final commit and
// the branch is tagged. The repository stays on the session branch.
func (m *Manager) End(ctx context.Context) (Result, error) {
	return m.track(ctx, OpEnd, m.end)
}

func (m *Manager) end(ctx context.Context, log *slog.Logger) (Result, error) {
	var res Result
	if err := m.refresh(ctx, log); err != nil {
		return res, err
	}
	if !m.state.IsActive {
		return res, &NoActiveSessionError{Op: OpEnd, Branch: m.state.CurrentBranch}
	}
	branch := m.state.SessionBranch
	res.Branch = branch

	if m.state.HasUncommittedChanges {
		final, err := m.commit(ctx, log, true)
		res.merge(final)
		if err != nil {
			return res, err
		}
	}
	m.tag(ctx, log, message.TagEnd, branch, &res)

	if err := m.refresh(ctx, log); err != nil {
		return res, err
	}
	log.Info("ended experimental session (branch preserved)", "branch", branch)
	return res, nil
}

// ReturnToParent ends the active session, if any, restores submodules and
// checks out the branch the session was started from.
func (m *Manager) ReturnToParent(ctx context.Context) (Result, error) {
	return m.track(ctx, OpReturn, m.returnToParent)
}

func (m *Manager) returnToParent(ctx context.Context, log *slog.Logger) (Result, error) {
	var res Result
	if err := m.refresh(ctx, log); err != nil {
		return res, err
	}
	parent := m.state.ParentBranch
	if parent == "" {
		return res, ErrNoParentRecorded
	}
	res.Branch = parent

	if m.state.IsActive {
		ended, err := m.end(ctx, log)
		res.merge(ended)
		if err != nil {
			return res, fmt.Errorf("ending session before return: %w", err)
		}
	}
	if m.opts.StrictReturn && m.state.HasUncommittedChanges {
		return res, &DirtyWorkingTreeError{Branch: m.state.CurrentBranch}
	}

	if m.opts.ManageSubmodules {
		res.addReport(m.subs.RestoreSubmodules(ctx))
	}
	if _, err := m.client.Run(ctx, []string{"checkout", parent}); err != nil {
		return res, fmt.Errorf("returning to %s: %w", parent, err)
	}

	if err := m.refresh(ctx, log); err != nil {
		return res, err
	}
	log.Info("returned to parent branch", "branch", parent)
	return res, nil
}

// Push publishes the active session branch to remote, or to the configured
// remote when remote is empty.
func (m *Manager) Push(ctx context.Context, remote string) (Result, error) {
	return m.track(ctx, OpPush, func(ctx context.Context, log *slog.Logger) (Result, error) {
		var res Result
		if err := m.refresh(ctx, log); err != nil {
			return res, err
		}
		if !m.state.IsActive {
			return res, &NoActiveSessionError{Op: OpPush, Branch: m.state.CurrentBranch}
		}
		if remote == "" {
			remote = m.opts.Remote
		}
		branch := m.state.SessionBranch
		res.Branch = branch
		if _, err := m.client.Run(ctx, []string{"push", "-u", remote, branch}); err != nil {
			return res, fmt.Errorf("pushing %s to %s: %w", branch, remote, err)
		}
		log.Info("pushed session branch", "branch", branch, "remote", remote)
		return res, nil
	})
}
