package session

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// DefaultPrefix starts every session branch name.
const DefaultPrefix = "session"

// TimestampLayout is the yymmdd-HHMMSS segment of a session branch name.
const TimestampLayout = "060102-150405"

// maxProbes bounds the search for a free branch name.
const maxProbes = 1000

// CleanSessionName turns a free-text session name into a branch name
// segment. Whitespace and underscores become '-', anything outside
// [A-Za-z0-9.-] is dropped, and sequences git refuses in ref names
// ("..", a trailing "." or ".lock") are removed.
func CleanSessionName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r) || r == '_':
			sb.WriteByte('-')
		case r == '-' || r == '.' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))):
			sb.WriteRune(r)
		}
	}
	s := sb.String()
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	for {
		trimmed := strings.TrimSuffix(strings.TrimRight(s, "."), ".lock")
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// ValidPrefix reports whether prefix can start a branch name.
func ValidPrefix(prefix string) bool {
	return prefix != "" && CleanSessionName(prefix) == prefix && !strings.HasPrefix(prefix, "-") && !strings.HasPrefix(prefix, ".")
}

// IsSessionBranch reports whether branch was created by this manager.
func (m *Manager) IsSessionBranch(branch string) bool {
	return strings.HasPrefix(branch, m.opts.Prefix+"-")
}

// GenerateBranchName returns "{prefix}-{yymmdd-HHMMSS}[-{name}]" for the
// current clock, suffixed with -1, -2, ... while the name is taken.
func (m *Manager) GenerateBranchName(ctx context.Context, name string) (string, error) {
	base := m.opts.Prefix + "-" + m.now().Format(TimestampLayout)
	if clean := CleanSessionName(name); clean != "" {
		base += "-" + clean
	}

	candidate := base
	for n := 1; n <= maxProbes; n++ {
		exists, err := m.client.BranchExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking branch %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return "", &BranchCollisionError{Base: base, Attempts: maxProbes}
}
