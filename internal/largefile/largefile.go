// Package largefile keeps oversized files out of session commits. Files are
// unstaged, hashed, and listed in the commit message instead.
package largefile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fakeyudi/gitsession/internal/git"
)

// DefaultLimit is the size above which a staged file is excluded.
const DefaultLimit int64 = 10 * 1024 * 1024

const chunkSize = 64 * 1024

// File is a staged file that was removed from the index.
type File struct {
	Path   string
	Size   int64
	SHA256 string // "error: ..." when hashing failed
}

// Exclude unstages every staged file under dir whose working-tree size is
// above limit. dir is the repository root the staged paths are relative to;
// opts are forwarded to git so submodules can be processed with git.InDir.
// A limit of zero or less selects DefaultLimit.
func Exclude(ctx context.Context, client *git.Client, dir string, limit int64, opts ...git.RunOption) ([]File, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	staged, err := client.StagedFiles(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("listing staged files: %w", err)
	}

	var found []File
	for _, rel := range staged {
		info, err := os.Stat(filepath.Join(dir, rel))
		if err != nil || info.IsDir() || info.Size() <= limit {
			continue
		}
		found = append(found, File{
			Path:   rel,
			Size:   info.Size(),
			SHA256: hashFile(filepath.Join(dir, rel)),
		})
	}
	if len(found) == 0 {
		return nil, nil
	}

	hasHead, err := client.HasHead(ctx, opts...)
	if err != nil {
		return nil, err
	}
	for _, f := range found {
		args := []string{"reset", "-q", "HEAD", "--", f.Path}
		if !hasHead {
			args = []string{"rm", "--cached", "-q", "--", f.Path}
		}
		if _, err := client.Run(ctx, args, opts...); err != nil {
			return nil, fmt.Errorf("unstaging %s: %w", f.Path, err)
		}
	}
	return found, nil
}

// Section renders the commit message block listing excluded files. It
// returns "" when files is empty.
func Section(files []File, limit int64) string {
	if len(files) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\nPrevented commit of %d large file(s) (>%.0fMB):\n", len(files), megabytes(limit))
	for _, f := range files {
		fmt.Fprintf(&sb, "  - %s (%.2f MB) SHA256: %s\n", f.Path, megabytes(f.Size), f.SHA256)
	}
	return sb.String()
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

func hashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "error: " + err.Error()
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, chunkSize)); err != nil {
		return "error: " + err.Error()
	}
	return hex.EncodeToString(h.Sum(nil))
}
