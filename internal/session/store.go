package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fakeyudi/gitsession/internal/atomicfile"
)

// ErrNoRecord is returned by Load when no session has been started in the
// repository yet.
var ErrNoRecord = errors.New("no session record")

// Record is what survives between invocations: the branch a session was
// started from and the session branch itself.
type Record struct {
	ParentBranch  string    `json:"parent_branch"`
	SessionBranch string    `json:"session_branch"`
	SessionName   string    `json:"session_name,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}

// RecordStore persists the latest Record.
type RecordStore interface {
	Save(r *Record) error
	Load() (*Record, error) // returns ErrNoRecord if none exists
}

// diskStore keeps the record as JSON inside the repository's git dir.
type diskStore struct {
	path string
}

// NewRecordStore returns a RecordStore at <gitDir>/gitsession/session.json.
func NewRecordStore(gitDir string) RecordStore {
	return &diskStore{path: filepath.Join(gitDir, "gitsession", "session.json")}
}

// Save writes r atomically.
func (d *diskStore) Save(r *Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist session record: %w", err)
	}
	if err := atomicfile.WriteFile(d.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to persist session record: %w", err)
	}
	return nil
}

// Load reads the record, returning ErrNoRecord if the file does not exist.
func (d *diskStore) Load() (*Record, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse session record: %w", err)
	}
	return &r, nil
}
