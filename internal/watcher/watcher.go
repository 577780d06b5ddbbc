// Package watcher commits session progress automatically when files in the
// working tree change.
package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/gitsession/internal/logger"
	"github.com/fakeyudi/gitsession/internal/session"
)

// DefaultDebounce is how long the tree must be quiet before a commit.
const DefaultDebounce = 5 * time.Second

// IgnoreFile holds extra ignore patterns at the repository root.
const IgnoreFile = ".gitsessionignore"

// Committer is the part of session.Manager the watcher drives.
type Committer interface {
	Commit(ctx context.Context, final bool) (session.Result, error)
}

// Options configures a Watcher.
type Options struct {
	Dir            string
	Debounce       time.Duration
	IgnorePatterns []string
	Log            *slog.Logger
	// OnCommit is called after every commit attempt.
	OnCommit func(session.Result, error)
}

// Watcher turns bursts of file events into progress commits.
type Watcher struct {
	committer Committer
	opts      Options
	patterns  []string
	log       *slog.Logger
}

// New returns a Watcher over opts.Dir. Patterns from .gitignore and
// IgnoreFile are merged with opts.IgnorePatterns.
func New(c Committer, opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Log
	if log == nil {
		log = logger.Component("watcher")
	}
	w := &Watcher{committer: c, opts: opts, log: log}
	patterns, err := loadIgnorePatterns(opts.Dir, opts.IgnorePatterns)
	if err != nil {
		log.Warn("failed to load ignore patterns", "err", err)
	}
	w.patterns = patterns
	return w, nil
}

// Run watches until ctx is cancelled. Commits made while no session is
// active are skipped quietly.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	if err := filepath.WalkDir(w.opts.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.opts.Dir && w.ignored(path, true) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	}); err != nil {
		return fmt.Errorf("watching %s: %w", w.opts.Dir, err)
	}
	w.log.Info("watching for changes", "dir", w.opts.Dir, "debounce", w.opts.Debounce)

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			isDir := false
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					isDir = true
				}
			}
			if w.ignored(event.Name, isDir) {
				continue
			}
			if isDir {
				_ = fw.Add(event.Name)
			}
			w.log.Debug("change detected", "path", event.Name, "op", event.Op.String())
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.opts.Debounce)
			pending = true

		case <-timer.C:
			pending = false
			w.commit(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) commit(ctx context.Context) {
	res, err := w.committer.Commit(ctx, false)
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		w.log.Debug("no active session, skipping commit")
	case err != nil:
		w.log.Error("automatic commit failed", "err", err)
	case res.Committed:
		w.log.Info("committed progress", "branch", res.Branch)
	}
	if w.opts.OnCommit != nil {
		w.opts.OnCommit(res, err)
	}
}

// ignored reports whether path is inside .git or matches a pattern. Patterns
// ending in "/" only match directories.
func (w *Watcher) ignored(path string, isDir bool) bool {
	rel := path
	if r, err := filepath.Rel(w.opts.Dir, path); err == nil {
		rel = r
	}
	rel = filepath.ToSlash(rel)
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	base := filepath.Base(path)

	for _, pattern := range w.patterns {
		if strings.HasSuffix(pattern, "/") {
			if !isDir {
				continue
			}
			pattern = strings.TrimSuffix(pattern, "/")
		}
		pattern = strings.TrimPrefix(pattern, "/")
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func loadIgnorePatterns(dir string, configured []string) ([]string, error) {
	patterns := append([]string(nil), configured...)
	for _, name := range []string{".gitignore", IgnoreFile} {
		extra, err := readPatternFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return patterns, err
		}
		patterns = append(patterns, extra...)
	}
	return patterns, nil
}

// readPatternFile returns the non-empty, non-comment lines of a
// gitignore-style file. Negations are not supported and are dropped.
func readPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
