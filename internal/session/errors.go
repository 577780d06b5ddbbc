package session

import (
	"errors"
	"fmt"
)

// ErrUser matches every error caused by how the tool was used rather than
// by the repository or environment:
//
//	if errors.Is(err, session.ErrUser) { ... }
var ErrUser = errors.New("user error")

// ErrNoActiveSession matches *NoActiveSessionError.
var ErrNoActiveSession = errors.New("no active session")

// ErrNoParentRecorded is returned by ReturnToParent when no session has
// recorded a branch to return to.
var ErrNoParentRecorded error = &userError{msg: "no parent branch recorded; cannot return to parent branch"}

type userError struct{ msg string }

func (e *userError) Error() string { return e.msg }

func (e *userError) Is(target error) bool { return target == ErrUser }

// NoActiveSessionError is returned when an operation needs a session branch
// checked out and the repository is on some other branch.
type NoActiveSessionError struct {
	Op     string
	Branch string
}

func (e *NoActiveSessionError) Error() string {
	return fmt.Sprintf("no active session to %s (current branch %q is not a session branch)", e.Op, e.Branch)
}

func (e *NoActiveSessionError) Is(target error) bool {
	return target == ErrUser || target == ErrNoActiveSession
}

// BranchCollisionError is returned when no free branch name was found.
type BranchCollisionError struct {
	Base     string
	Attempts int
}

func (e *BranchCollisionError) Error() string {
	return fmt.Sprintf("branch %s already exists (gave up after %d attempts)", e.Base, e.Attempts)
}

func (e *BranchCollisionError) Is(target error) bool { return target == ErrUser }

// DirtyWorkingTreeError is returned by a strict return when changes are
// still uncommitted after the session was ended.
type DirtyWorkingTreeError struct {
	Branch string
}

func (e *DirtyWorkingTreeError) Error() string {
	return fmt.Sprintf("uncommitted changes on %s; commit or stash them before switching branches", e.Branch)
}

func (e *DirtyWorkingTreeError) Is(target error) bool { return target == ErrUser }
