package session

import (
	"fmt"

	"github.com/fakeyudi/gitsession/internal/largefile"
	"github.com/fakeyudi/gitsession/internal/submodule"
)

// Operation names, as journaled and logged.
const (
	OpStart  = "start"
	OpCommit = "commit"
	OpEnd    = "end"
	OpReturn = "return"
	OpPush   = "push"
)

// Result describes what a lifecycle operation did. Best-effort failures
// (tags, submodules, the session record) land in Warnings and do not make
// the operation fail.
type Result struct {
	ID         string
	Op         string
	Branch     string
	Committed  bool
	Tags       []string
	Excluded   []largefile.File
	Submodules []submodule.ModuleResult
	Warnings   []string
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) addReport(rep submodule.Report) {
	r.Submodules = append(r.Submodules, rep.Results...)
	r.Warnings = append(r.Warnings, rep.Warnings...)
}

// merge folds the outcome of a nested operation into r.
func (r *Result) merge(other Result) {
	r.Committed = r.Committed || other.Committed
	r.Tags = append(r.Tags, other.Tags...)
	r.Excluded = append(r.Excluded, other.Excluded...)
	r.Submodules = append(r.Submodules, other.Submodules...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}
