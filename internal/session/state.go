package session

// State is a snapshot of the repository as the manager last saw it.
type State struct {
	CurrentBranch string `json:"current_branch" yaml:"current_branch"`
	CurrentCommit string `json:"current_commit" yaml:"current_commit"`
	// ParentBranch is the branch (or commit id, when started detached) the
	// last session was started from.
	ParentBranch          string `json:"parent_branch" yaml:"parent_branch"`
	SessionBranch         string `json:"session_branch" yaml:"session_branch"`
	IsActive              bool   `json:"is_active" yaml:"is_active"`
	HasUncommittedChanges bool   `json:"has_uncommitted_changes" yaml:"has_uncommitted_changes"`
	ManageSubmodules      bool   `json:"manage_submodules" yaml:"manage_submodules"`
}

// Phase names the lifecycle state derived from IsActive.
func (s State) Phase() string {
	if s.IsActive {
		return "active"
	}
	return "idle"
}
