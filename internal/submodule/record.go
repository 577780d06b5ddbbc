package submodule

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fakeyudi/gitsession/internal/atomicfile"
)

// RecordFile is the name of the parent-branch record inside the git dir.
const RecordFile = "gitsession-submodule-parents"

// ErrNoRecord is returned by ReadParents when no record has been written.
var ErrNoRecord = errors.New("no submodule parent record")

// Entry pairs a submodule path with the branch it was on before the session.
type Entry struct {
	Path   string
	Branch string
}

// WriteParents replaces the record at path with one "path:branch" line per
// entry.
func WriteParents(path string, entries []Entry) error {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Path)
		sb.WriteByte(':')
		sb.WriteString(e.Branch)
		sb.WriteByte('\n')
	}
	if err := atomicfile.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to persist submodule parents: %w", err)
	}
	return nil
}

// ReadParents loads the record at path. Lines split at the last ':' since
// branch names cannot contain one; blank or malformed lines are skipped.
func ReadParents(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("failed to read submodule parents: %w", err)
	}
	defer f.Close()

	parents := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		i := strings.LastIndexByte(line, ':')
		if i <= 0 {
			continue
		}
		parents[line[:i]] = line[i+1:]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read submodule parents: %w", err)
	}
	return parents, nil
}
