// Package config loads gitsession settings from the global and project
// config files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fakeyudi/gitsession/internal/atomicfile"
	"github.com/fakeyudi/gitsession/internal/session"
)

// ProjectFile is the per-repository config file at the repository root.
const ProjectFile = ".gitsession.json"

// Config holds all configurable gitsession settings. Pointer fields are
// unset when nil so that a project file can turn off what the global file
// turned on.
type Config struct {
	RepoPath             string   `json:"repo_path,omitempty"`
	SessionName          string   `json:"session_name,omitempty"`
	SessionPrefix        string   `json:"session_prefix,omitempty"`
	ManageSubmodules     *bool    `json:"manage_submodules,omitempty"`
	IgnoreSubmoduleDirt  *bool    `json:"ignore_submodule_dirt,omitempty"`
	StrictReturn         *bool    `json:"strict_return,omitempty"`
	MaxFileSizeMB        float64  `json:"max_file_size_mb,omitempty"`
	Signature            string   `json:"signature,omitempty"`
	Remote               string   `json:"remote,omitempty"`
	WatchDebounceSeconds float64  `json:"watch_debounce_seconds,omitempty"`
	IgnorePatterns       []string `json:"ignore_patterns,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		SessionPrefix:        session.DefaultPrefix,
		ManageSubmodules:     Bool(false),
		IgnoreSubmoduleDirt:  Bool(false),
		StrictReturn:         Bool(false),
		MaxFileSizeMB:        10,
		Remote:               session.DefaultRemote,
		WatchDebounceSeconds: 5,
		IgnorePatterns:       []string{},
	}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Submodules reports whether submodule management is on.
func (c Config) Submodules() bool { return c.ManageSubmodules != nil && *c.ManageSubmodules }

// IgnoreDirtySubmodules reports whether dirty submodules are ignored in
// status checks.
func (c Config) IgnoreDirtySubmodules() bool {
	return c.IgnoreSubmoduleDirt != nil && *c.IgnoreSubmoduleDirt
}

// Strict reports whether return refuses to leave a dirty working tree.
func (c Config) Strict() bool { return c.StrictReturn != nil && *c.StrictReturn }

// MaxFileSize returns the large-file threshold in bytes.
func (c Config) MaxFileSize() int64 { return int64(c.MaxFileSizeMB * 1024 * 1024) }

// WatchDebounce returns the watcher's quiet period.
func (c Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceSeconds * float64(time.Second))
}

// GlobalPath returns ~/.config/gitsession/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gitsession", "config.json"), nil
}

// LoadGlobal reads the global config file. Returns defaults if the file is
// absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads ProjectFile in dir. Returns nil (no error) if the file
// is absent.
func LoadProject(dir string) (*Config, error) {
	return loadFile(filepath.Join(dir, ProjectFile), false)
}

// Load merges the global config with the project config in dir and
// validates the result.
func Load(dir string) (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject(dir)
	if err != nil {
		return Config{}, err
	}
	cfg := Merge(global, project)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, append(data, '\n'), 0o644)
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer != nil {
			result.apply(layer)
		}
	}
	return result
}

func (c *Config) apply(o *Config) {
	setString(&c.RepoPath, o.RepoPath)
	setString(&c.SessionName, o.SessionName)
	setString(&c.SessionPrefix, o.SessionPrefix)
	setString(&c.Signature, o.Signature)
	setString(&c.Remote, o.Remote)
	if o.ManageSubmodules != nil {
		c.ManageSubmodules = Bool(*o.ManageSubmodules)
	}
	if o.IgnoreSubmoduleDirt != nil {
		c.IgnoreSubmoduleDirt = Bool(*o.IgnoreSubmoduleDirt)
	}
	if o.StrictReturn != nil {
		c.StrictReturn = Bool(*o.StrictReturn)
	}
	if o.MaxFileSizeMB != 0 {
		c.MaxFileSizeMB = o.MaxFileSizeMB
	}
	if o.WatchDebounceSeconds != 0 {
		c.WatchDebounceSeconds = o.WatchDebounceSeconds
	}
	if len(o.IgnorePatterns) > 0 {
		c.IgnorePatterns = o.IgnorePatterns
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks values that would otherwise fail deep inside an
// operation.
func (c Config) Validate() error {
	if !session.ValidPrefix(c.SessionPrefix) {
		return &ValidationError{Field: "session_prefix", Reason: fmt.Sprintf("%q is not a valid branch name prefix", c.SessionPrefix)}
	}
	if c.MaxFileSizeMB <= 0 {
		return &ValidationError{Field: "max_file_size_mb", Reason: "must be positive"}
	}
	if c.WatchDebounceSeconds <= 0 {
		return &ValidationError{Field: "watch_debounce_seconds", Reason: "must be positive"}
	}
	for _, p := range c.IgnorePatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return &ValidationError{Field: "ignore_patterns", Reason: fmt.Sprintf("bad pattern %q", p)}
		}
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError names the config field holding an unusable value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config " + e.Field + ": " + e.Reason
}
