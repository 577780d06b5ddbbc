package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fakeyudi/gitsession/internal/git"
	"github.com/fakeyudi/gitsession/internal/journal"
	"github.com/fakeyudi/gitsession/internal/session"
	"github.com/fakeyudi/gitsession/internal/testutil"
)

func openManager(t *testing.T, dir string, edit func(*session.Options)) *session.Manager {
	t.Helper()
	opts := session.Options{RepoPath: dir, Now: fixedClock}
	if edit != nil {
		edit(&opts)
	}
	m, err := session.Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func branchOf(t *testing.T, dir string) string {
	t.Helper()
	return testutil.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

func subjectOf(t *testing.T, dir string) string {
	t.Helper()
	return testutil.Git(t, dir, "log", "-1", "--format=%s")
}

func TestTrialAEndToEnd(t *testing.T) {
	dir := testutil.NewRepo(t)
	sub := testutil.AddSubmodule(t, dir, "libs/core")
	ctx := context.Background()
	m := openManager(t, dir, func(o *session.Options) {
		o.SessionName = "Trial A"
		o.ManageSubmodules = true
	})
	before := testutil.CommitCount(t, dir)

	res, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	const branch = "session-260304-050607-Trial-A"
	if res.Branch != branch {
		t.Errorf("branch: want %s, got %s", branch, res.Branch)
	}
	st := m.State()
	if !st.IsActive || st.SessionBranch != branch || st.ParentBranch != "main" {
		t.Errorf("unexpected state after start: %+v", st)
	}
	if got := testutil.CommitCount(t, dir); got != before+1 {
		t.Errorf("start should create one commit: before %d, after %d", before, got)
	}
	if got := branchOf(t, sub); got != branch {
		t.Errorf("submodule branch: want %s, got %s", branch, got)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	testutil.WriteFile(t, dir, "README.md", "# edited\n")
	res, err = m.Commit(ctx, false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !res.Committed {
		t.Error("expected a progress commit")
	}
	if got := subjectOf(t, dir); got != "Progress commit for experimental session: "+branch {
		t.Errorf("unexpected subject %q", got)
	}

	if _, err := m.ReturnToParent(ctx); err != nil {
		t.Fatalf("ReturnToParent: %v", err)
	}
	if got := branchOf(t, dir); got != "main" {
		t.Errorf("superproject: want main, got %s", got)
	}
	if got := branchOf(t, sub); got != "main" {
		t.Errorf("submodule: want main, got %s", got)
	}
	if m.State().IsActive {
		t.Error("session should be inactive after return")
	}
}

func TestStartOnCleanTreeMakesOneEmptyCommit(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, nil)
	before := testutil.CommitCount(t, dir)

	res, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := testutil.CommitCount(t, dir); got != before+1 {
		t.Errorf("want exactly one new commit, got %d", got-before)
	}
	if got := subjectOf(t, dir); got != "Start experimental session: "+res.Branch {
		t.Errorf("unexpected subject %q", got)
	}
	if staged := testutil.Git(t, dir, "diff", "--cached", "--name-only"); staged != "" {
		t.Errorf("nothing should remain staged, got %q", staged)
	}
	if tags := testutil.Git(t, dir, "tag", "-l"); tags != "start-"+res.Branch {
		t.Errorf("expected start tag, got %q", tags)
	}
	if len(res.Tags) != 1 {
		t.Errorf("result should list the tag, got %v", res.Tags)
	}
}

func TestStartCommitsChangesThenStartsCleanAgain(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, nil)
	ctx := context.Background()

	testutil.WriteFile(t, dir, "README.md", "# modified\n")
	testutil.WriteFile(t, dir, "notes.txt", "new file\n")
	first, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if got := subjectOf(t, dir); got != "Initial state for experimental session: "+first.Branch {
		t.Errorf("unexpected subject %q", got)
	}
	if m.State().HasUncommittedChanges {
		t.Error("tree should be clean after the initial state commit")
	}

	second, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("second Start on clean tree: %v", err)
	}
	if second.Branch != first.Branch+"-1" {
		t.Errorf("second branch: want %s-1, got %s", first.Branch, second.Branch)
	}
	if got := subjectOf(t, dir); got != "Start experimental session: "+second.Branch {
		t.Errorf("expected empty start commit, got %q", got)
	}
	// Nested starts chain parents.
	if got := m.State().ParentBranch; got != first.Branch {
		t.Errorf("nested parent: want %s, got %s", first.Branch, got)
	}
}

func TestRepeatedCollisionsSuffixInOrder(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, func(o *session.Options) { o.SessionName = "run" })
	ctx := context.Background()

	base := "session-260304-050607-run"
	want := []string{base, base + "-1", base + "-2", base + "-3"}
	for i, w := range want {
		res, err := m.Start(ctx)
		if err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		if res.Branch != w {
			t.Errorf("Start %d: want %s, got %s", i, w, res.Branch)
		}
	}
}

func TestStartExcludesLargeFiles(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, func(o *session.Options) { o.MaxFileSize = 64 })

	testutil.WriteFile(t, dir, "small.txt", "ok\n")
	testutil.WriteFile(t, dir, "data/huge.bin", strings.Repeat("z", 200))
	res, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(res.Excluded) != 1 || res.Excluded[0].Path != "data/huge.bin" {
		t.Fatalf("expected huge.bin excluded, got %+v", res.Excluded)
	}
	tree := testutil.Git(t, dir, "ls-tree", "-r", "--name-only", "HEAD")
	if strings.Contains(tree, "huge.bin") || !strings.Contains(tree, "small.txt") {
		t.Errorf("unexpected tree:\n%s", tree)
	}
	body := testutil.Git(t, dir, "log", "-1", "--format=%B")
	if !strings.Contains(body, "Prevented commit of 1 large file(s)") || !strings.Contains(body, "data/huge.bin (0.00 MB) SHA256: ") {
		t.Errorf("commit message should list the excluded file:\n%s", body)
	}
}

func TestStartWithOnlyLargeFilesSkipsInitialCommit(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, func(o *session.Options) { o.MaxFileSize = 8 })
	testutil.WriteFile(t, dir, "huge.bin", strings.Repeat("z", 100))
	before := testutil.CommitCount(t, dir)

	res, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Committed {
		t.Error("nothing should have been committed")
	}
	if got := testutil.CommitCount(t, dir); got != before {
		t.Errorf("commit count changed: %d -> %d", before, got)
	}
}

func TestCommitRequiresActiveSession(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, nil)

	_, err := m.Commit(context.Background(), false)
	var noActive *session.NoActiveSessionError
	if !errors.As(err, &noActive) {
		t.Fatalf("expected NoActiveSessionError, got %v", err)
	}
	if !errors.Is(err, session.ErrUser) || !errors.Is(err, session.ErrNoActiveSession) {
		t.Error("error should match ErrUser and ErrNoActiveSession")
	}
	if noActive.Branch != "main" {
		t.Errorf("error should name the current branch, got %q", noActive.Branch)
	}
}

func TestCommitOnCleanTreeIsNoop(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, nil)
	ctx := context.Background()
	if _, err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	before := testutil.CommitCount(t, dir)

	res, err := m.Commit(ctx, false)
	if err != nil {
		t.Fatalf("Commit on clean tree: %v", err)
	}
	if res.Committed {
		t.Error("clean tree should not produce a commit")
	}
	if err := m.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if m.State().HasUncommittedChanges {
		t.Error("HasUncommittedChanges should stay false")
	}
	if testutil.CommitCount(t, dir) != before {
		t.Error("commit count changed")
	}
}

func TestEndCommitsAndStaysOnBranch(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, nil)
	ctx := context.Background()
	start, err := m.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}

	testutil.WriteFile(t, dir, "result.txt", "42\n")
	res, err := m.End(ctx)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if !res.Committed {
		t.Error("End should commit remaining changes")
	}
	if got := subjectOf(t, dir); got != "Final commit for experimental session: "+start.Branch {
		t.Errorf("unexpected subject %q", got)
	}
	if got := branchOf(t, dir); got != start.Branch {
		t.Errorf("End must not switch branch, now on %s", got)
	}
	if out := testutil.Git(t, dir, "tag", "-l", "end-*"); out != "end-"+start.Branch {
		t.Errorf("expected end tag, got %q", out)
	}
}

func TestEndTwiceWarnsAboutExistingTag(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, nil)
	ctx := context.Background()
	if _, err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.End(ctx); err != nil {
		t.Fatal(err)
	}
	res, err := m.End(ctx)
	if err != nil {
		t.Fatalf("second End should still succeed: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "could not create tag") {
		t.Errorf("expected a tag warning, got %v", res.Warnings)
	}
}

func TestReturnWithoutParentDoesNotMutate(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, nil)
	head := testutil.Git(t, dir, "rev-parse", "HEAD")
	testutil.WriteFile(t, dir, "wip.txt", "x")

	_, err := m.ReturnToParent(context.Background())
	if !errors.Is(err, session.ErrNoParentRecorded) {
		t.Fatalf("expected ErrNoParentRecorded, got %v", err)
	}
	if !errors.Is(err, session.ErrUser) {
		t.Error("missing parent should be a user error")
	}
	if testutil.Git(t, dir, "rev-parse", "HEAD") != head || branchOf(t, dir) != "main" {
		t.Error("repository was mutated")
	}
	if status := testutil.Git(t, dir, "status", "--porcelain"); status != "?? wip.txt" {
		t.Errorf("working tree changed: %q", status)
	}
}

func TestStrictReturnRefusesDirtyTree(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, func(o *session.Options) {
		o.StrictReturn = true
		o.MaxFileSize = 16
	})
	ctx := context.Background()
	start, err := m.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Excluded from every commit, so the tree stays dirty after End.
	testutil.WriteFile(t, dir, "big.bin", strings.Repeat("b", 64))

	_, err = m.ReturnToParent(ctx)
	var dirty *session.DirtyWorkingTreeError
	if !errors.As(err, &dirty) {
		t.Fatalf("expected DirtyWorkingTreeError, got %v", err)
	}
	if got := branchOf(t, dir); got != start.Branch {
		t.Errorf("strict return must not switch, now on %s", got)
	}
}

func TestLenientReturnLeavesUntrackedFiles(t *testing.T) {
	dir := testutil.NewRepo(t)
	m := openManager(t, dir, func(o *session.Options) { o.MaxFileSize = 16 })
	ctx := context.Background()
	if _, err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, dir, "big.bin", strings.Repeat("b", 64))

	if _, err := m.ReturnToParent(ctx); err != nil {
		t.Fatalf("ReturnToParent: %v", err)
	}
	if got := branchOf(t, dir); got != "main" {
		t.Errorf("want main, got %s", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "big.bin")); err != nil {
		t.Errorf("untracked file should survive the checkout: %v", err)
	}
}

func TestParentSurvivesReopen(t *testing.T) {
	dir := testutil.NewRepo(t)
	ctx := context.Background()
	first := openManager(t, dir, nil)
	if _, err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second := openManager(t, dir, nil)
	if got := second.State().ParentBranch; got != "main" {
		t.Fatalf("reopened parent: want main, got %q", got)
	}
	if !second.State().IsActive {
		t.Error("reopened manager should see the active session")
	}
	if _, err := second.ReturnToParent(ctx); err != nil {
		t.Fatalf("ReturnToParent: %v", err)
	}
	if got := branchOf(t, dir); got != "main" {
		t.Errorf("want main, got %s", got)
	}
}

func TestOpenFromSubdirectory(t *testing.T) {
	dir := testutil.NewRepo(t)
	testutil.WriteFile(t, dir, "pkg/inner/file.txt", "x")
	m := openManager(t, filepath.Join(dir, "pkg", "inner"), nil)
	if got := m.Options().RepoPath; got != dir {
		t.Errorf("RepoPath should resolve to the top level: want %s, got %s", dir, got)
	}
	if _, err := os.Stat(journal.PathFor(filepath.Join(dir, ".git"))); err != nil {
		t.Errorf("journal should be created in the git dir: %v", err)
	}
}

func TestDetachedHeadStartRecordsCommit(t *testing.T) {
	dir := testutil.NewRepo(t)
	head := testutil.Git(t, dir, "rev-parse", "HEAD")
	testutil.Git(t, dir, "checkout", "-q", "--detach")
	m := openManager(t, dir, nil)
	ctx := context.Background()

	if _, err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := m.State().ParentBranch; got != head {
		t.Errorf("parent: want commit %s, got %q", head, got)
	}
	if _, err := m.ReturnToParent(ctx); err != nil {
		t.Fatalf("ReturnToParent: %v", err)
	}
	if got := testutil.Git(t, dir, "rev-parse", "HEAD"); got != head {
		t.Errorf("HEAD: want %s, got %s", head, got)
	}
}

func TestBarePrefixBranchIsNotActive(t *testing.T) {
	dir := testutil.NewRepo(t)
	testutil.Git(t, dir, "checkout", "-q", "-b", "session")
	m := openManager(t, dir, nil)
	if m.State().IsActive {
		t.Error(`branch "session" has no separator and must not count as a session`)
	}
	testutil.Git(t, dir, "checkout", "-q", "-b", "session-")
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.State().IsActive || m.State().SessionBranch != "session-" {
		t.Errorf("unexpected state: %+v", m.State())
	}
}

func TestRefreshFailureKeepsPreviousState(t *testing.T) {
	dir := testutil.NewRepo(t)
	failing := false
	client := &git.Client{Dir: dir, Runner: func(ctx context.Context, d, stdin string, args ...string) (git.Output, error) {
		if failing {
			return git.Output{ExitCode: 128, Stderr: "fatal: simulated"}, nil
		}
		return git.ExecRunner(ctx, d, stdin, args...)
	}}
	m := openManager(t, dir, func(o *session.Options) { o.Client = client })
	before := m.State()
	if before.CurrentBranch != "main" {
		t.Fatalf("initial refresh failed: %+v", before)
	}

	failing = true
	testutil.WriteFile(t, dir, "x.txt", "x")
	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if m.State() != before {
		t.Errorf("state changed on failed refresh: %+v", m.State())
	}
}

type fakeJournal struct {
	entries []journal.Entry
}

func (f *fakeJournal) Record(ctx context.Context, e journal.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func TestOperationsAreJournaled(t *testing.T) {
	dir := testutil.NewRepo(t)
	j := &fakeJournal{}
	m := openManager(t, dir, func(o *session.Options) { o.Journal = j })
	ctx := context.Background()

	start, err := m.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Commit(ctx, false); err != nil {
		t.Fatal(err)
	}
	testutil.Git(t, dir, "checkout", "-q", "main")
	if _, err := m.Commit(ctx, false); err == nil {
		t.Fatal("expected commit outside a session to fail")
	}

	if len(j.entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(j.entries))
	}
	if j.entries[0].Op != session.OpStart || j.entries[0].Branch != start.Branch || j.entries[0].Outcome != journal.OutcomeOK {
		t.Errorf("unexpected start entry: %+v", j.entries[0])
	}
	if j.entries[2].Outcome != journal.OutcomeFailed || j.entries[2].Error == "" {
		t.Errorf("unexpected failed entry: %+v", j.entries[2])
	}
	if j.entries[0].ID == "" || j.entries[0].ID == j.entries[1].ID {
		t.Error("operation ids should be unique and non-empty")
	}
	if start.ID != j.entries[0].ID {
		t.Error("result id should match the journal entry")
	}
}

func TestPushForwardsToRemote(t *testing.T) {
	dir := testutil.NewRepo(t)
	remote := filepath.Join(t.TempDir(), "remote.git")
	testutil.Git(t, dir, "init", "-q", "--bare", remote)
	testutil.Git(t, dir, "remote", "add", "origin", remote)
	m := openManager(t, dir, nil)
	ctx := context.Background()

	if _, err := m.Push(ctx, ""); !errors.Is(err, session.ErrNoActiveSession) {
		t.Fatalf("push outside a session: want ErrNoActiveSession, got %v", err)
	}
	start, err := m.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Push(ctx, ""); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if out := testutil.Git(t, remote, "branch", "--list", start.Branch); !strings.Contains(out, start.Branch) {
		t.Errorf("remote should have %s, got %q", start.Branch, out)
	}
}

type countingStore struct {
	saves int
}

func (s *countingStore) Save(r *session.Record) error { s.saves++; return nil }
func (s *countingStore) Load() (*session.Record, error) {
	return nil, session.ErrNoRecord
}

// racingClient reports session branches free on the first probe and lets
// race decide what happens afterwards.
func racingClient(dir string, race func(args []string, probes int) (git.Output, bool)) *git.Client {
	probes := 0
	return &git.Client{Dir: dir, Runner: func(ctx context.Context, d, stdin string, args ...string) (git.Output, error) {
		if len(args) == 4 && args[0] == "rev-parse" && strings.HasPrefix(args[3], "refs/heads/session-") {
			probes++
		}
		if out, ok := race(args, probes); ok {
			return out, nil
		}
		return git.ExecRunner(ctx, d, stdin, args...)
	}}
}

func TestStartLosesCreateRace(t *testing.T) {
	cases := []struct {
		name      string
		race      func(args []string, probes int) (git.Output, bool)
		collision bool
	}{
		{
			name: "taken on re-check",
			race: func(args []string, probes int) (git.Output, bool) {
				if args[0] == "rev-parse" && len(args) == 4 && strings.HasPrefix(args[3], "refs/heads/session-") {
					if probes == 1 {
						return git.Output{ExitCode: 1}, true
					}
					return git.Output{}, true
				}
				return git.Output{}, false
			},
			collision: true,
		},
		{
			name: "checkout -b fails",
			race: func(args []string, probes int) (git.Output, bool) {
				if args[0] == "checkout" && len(args) > 1 && args[1] == "-b" {
					return git.Output{ExitCode: 128, Stderr: "fatal: a branch named 'session-x' already exists"}, true
				}
				return git.Output{}, false
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := testutil.NewRepo(t)
			store := &countingStore{}
			m := openManager(t, dir, func(o *session.Options) {
				o.Client = racingClient(dir, tc.race)
				o.Records = store
			})

			_, err := m.Start(context.Background())
			if err == nil {
				t.Fatal("expected Start to fail")
			}
			if tc.collision {
				var collision *session.BranchCollisionError
				if !errors.As(err, &collision) {
					t.Fatalf("want BranchCollisionError, got %T: %v", err, err)
				}
				if !errors.Is(err, session.ErrUser) {
					t.Error("a collision should be a user error")
				}
			} else {
				var cmdErr *git.CommandError
				if !errors.As(err, &cmdErr) || cmdErr.ExitCode != 128 {
					t.Fatalf("want CommandError exit 128, got %T: %v", err, err)
				}
			}
			if m.State().ParentBranch != "" {
				t.Errorf("parent must not be recorded, got %q", m.State().ParentBranch)
			}
			if store.saves != 0 {
				t.Errorf("record store written %d times", store.saves)
			}
			if branchOf(t, dir) != "main" {
				t.Errorf("branch changed to %q", branchOf(t, dir))
			}
		})
	}
}
