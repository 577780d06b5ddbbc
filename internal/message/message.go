// Package message builds the commit and tag messages written by gitsession.
// Log-mining tools parse these, so the layout is fixed.
package message

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSignature names the tool in every message it writes.
const DefaultSignature = "gitsession Session Manager"

// TimestampLayout is the layout of the Started line.
const TimestampLayout = "2006-01-02 15:04:05"

// Kind selects the headline of a session commit.
type Kind int

const (
	// Start marks an empty commit recording the beginning of a session.
	Start Kind = iota
	// InitialState records the working tree as found when the session began.
	InitialState
	// Progress is an intermediate snapshot.
	Progress
	// Final is the closing snapshot written when a session ends.
	Final
)

func (k Kind) headline() string {
	switch k {
	case Start:
		return "Start experimental session"
	case InitialState:
		return "Initial state for experimental session"
	case Final:
		return "Final commit for experimental session"
	default:
		return "Progress commit for experimental session"
	}
}

// String returns the short name used in logs.
func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case InitialState:
		return "initial"
	case Final:
		return "final"
	default:
		return "progress"
	}
}

// ForFinal returns Final when final is set, otherwise Progress.
func ForFinal(final bool) Kind {
	if final {
		return Final
	}
	return Progress
}

// Commit renders a session commit message.
func Commit(kind Kind, branch string, at time.Time, signature string) string {
	return render(kind.headline(), branch, at, signature)
}

// TagKind selects the headline of a session tag.
type TagKind int

const (
	// TagStart is written when a session starts.
	TagStart TagKind = iota
	// TagEnd is written when a session ends.
	TagEnd
)

// Prefix is the tag name prefix, "start" or "end".
func (k TagKind) Prefix() string {
	if k == TagEnd {
		return "end"
	}
	return "start"
}

// TagName returns "{start|end}-{branch}".
func TagName(kind TagKind, branch string) string {
	return kind.Prefix() + "-" + branch
}

// Tag renders an annotated tag body.
func Tag(kind TagKind, branch string, at time.Time, signature string) string {
	headline := "Start tag for experimental session"
	if kind == TagEnd {
		headline = "End tag for experimental session"
	}
	return render(headline, branch, at, signature)
}

func render(headline, branch string, at time.Time, signature string) string {
	if signature == "" {
		signature = DefaultSignature
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n\n", headline, branch)
	sb.WriteString("Session Details:\n")
	fmt.Fprintf(&sb, "- Branch: %s\n", branch)
	fmt.Fprintf(&sb, "- Started: %s\n", at.Format(TimestampLayout))
	fmt.Fprintf(&sb, "- %s\n\n", signature)
	fmt.Fprintf(&sb, "Generated with %s\n", signature)
	return sb.String()
}
