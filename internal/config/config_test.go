package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// Feature: gitsession, Property: config merge precedence is project over
// global over defaults.
func TestConfigMergePrecedence(t *testing.T) {
	nonEmptyString := rapid.StringMatching(`[a-zA-Z0-9/_.-]{1,20}`)

	configGen := rapid.Custom(func(t *rapid.T) *Config {
		cfg := &Config{}
		if rapid.Bool().Draw(t, "hasSessionName") {
			cfg.SessionName = nonEmptyString.Draw(t, "sessionName")
		}
		if rapid.Bool().Draw(t, "hasRemote") {
			cfg.Remote = nonEmptyString.Draw(t, "remote")
		}
		if rapid.Bool().Draw(t, "hasSignature") {
			cfg.Signature = nonEmptyString.Draw(t, "signature")
		}
		if rapid.Bool().Draw(t, "hasSubmodules") {
			cfg.ManageSubmodules = Bool(rapid.Bool().Draw(t, "submodules"))
		}
		if rapid.Bool().Draw(t, "hasSize") {
			cfg.MaxFileSizeMB = rapid.Float64Range(0.5, 100).Draw(t, "size")
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		var global, project *Config
		if rapid.Bool().Draw(t, "hasGlobal") {
			global = configGen.Draw(t, "global")
		}
		if rapid.Bool().Draw(t, "hasProject") {
			project = configGen.Draw(t, "project")
		}

		merged := Merge(global, project)
		defaults := Defaults()
		pick := func(get func(*Config) string) string {
			for _, c := range []*Config{project, global} {
				if c != nil && get(c) != "" {
					return get(c)
				}
			}
			return get(&defaults)
		}

		if want := pick(func(c *Config) string { return c.SessionName }); merged.SessionName != want {
			t.Fatalf("SessionName: want %q, got %q", want, merged.SessionName)
		}
		if want := pick(func(c *Config) string { return c.Remote }); merged.Remote != want {
			t.Fatalf("Remote: want %q, got %q", want, merged.Remote)
		}
		if want := pick(func(c *Config) string { return c.Signature }); merged.Signature != want {
			t.Fatalf("Signature: want %q, got %q", want, merged.Signature)
		}

		wantSubs := false
		for _, c := range []*Config{global, project} {
			if c != nil && c.ManageSubmodules != nil {
				wantSubs = *c.ManageSubmodules
			}
		}
		if merged.Submodules() != wantSubs {
			t.Fatalf("ManageSubmodules: want %v, got %v", wantSubs, merged.Submodules())
		}

		wantSize := defaults.MaxFileSizeMB
		for _, c := range []*Config{global, project} {
			if c != nil && c.MaxFileSizeMB != 0 {
				wantSize = c.MaxFileSizeMB
			}
		}
		if merged.MaxFileSizeMB != wantSize {
			t.Fatalf("MaxFileSizeMB: want %v, got %v", wantSize, merged.MaxFileSizeMB)
		}
	})
}

func TestDefaultsValues(t *testing.T) {
	d := Defaults()
	if d.SessionPrefix != "session" {
		t.Errorf("SessionPrefix: want %q, got %q", "session", d.SessionPrefix)
	}
	if d.MaxFileSize() != 10<<20 {
		t.Errorf("MaxFileSize: want 10 MiB, got %d", d.MaxFileSize())
	}
	if d.Submodules() || d.Strict() {
		t.Error("submodules and strict return should default off")
	}
	if d.WatchDebounce().Seconds() != 5 {
		t.Errorf("WatchDebounce: got %v", d.WatchDebounce())
	}
	if err := d.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestProjectCanDisableGlobalToggle(t *testing.T) {
	merged := Merge(&Config{ManageSubmodules: Bool(true)}, &Config{ManageSubmodules: Bool(false)})
	if merged.Submodules() {
		t.Error("project false should override global true")
	}
}

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || cfg.SessionPrefix != Defaults().SessionPrefix {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadProjectMissingFileReturnsNil(t *testing.T) {
	cfg, err := LoadProject(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
}

func TestLoadParseError(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgDir := filepath.Join(tmp, ".config", "gitsession")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{invalid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(t.TempDir())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "config.json") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestLoadMergesProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	if err := Save(filepath.Join(dir, ProjectFile), Config{SessionPrefix: "exp", ManageSubmodules: Bool(true)}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionPrefix != "exp" || !cfg.Submodules() {
		t.Errorf("project settings not applied: %+v", cfg)
	}
	if cfg.Remote != "origin" {
		t.Errorf("unset fields should keep defaults, remote=%q", cfg.Remote)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]Config{
		"session_prefix":         {SessionPrefix: "bad prefix", MaxFileSizeMB: 1, WatchDebounceSeconds: 1},
		"max_file_size_mb":       {SessionPrefix: "session", MaxFileSizeMB: -1, WatchDebounceSeconds: 1},
		"watch_debounce_seconds": {SessionPrefix: "session", MaxFileSizeMB: 1, WatchDebounceSeconds: -2},
		"ignore_patterns":        {SessionPrefix: "session", MaxFileSizeMB: 1, WatchDebounceSeconds: 1, IgnorePatterns: []string{"[unclosed"}},
	}
	for field, cfg := range cases {
		var verr *ValidationError
		if err := cfg.Validate(); !errors.As(err, &verr) || verr.Field != field {
			t.Errorf("%s: got %v", field, err)
		}
	}
}

func TestRunSetupAcceptsDefaults(t *testing.T) {
	var out bytes.Buffer
	cfg, err := RunSetup(strings.NewReader("\n\n\n\n\n"), &out, Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionPrefix != "session" || cfg.Submodules() || cfg.MaxFileSizeMB != 10 {
		t.Errorf("defaults not kept: %+v", cfg)
	}
	if !strings.Contains(out.String(), "Branch prefix [session]") {
		t.Errorf("prompt missing default: %q", out.String())
	}
}

func TestRunSetupRetriesBadPrefix(t *testing.T) {
	var out bytes.Buffer
	in := "bad prefix\nexp\nplots\ny\nn\n25\n"
	cfg, err := RunSetup(strings.NewReader(in), &out, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionPrefix != "exp" || cfg.SessionName != "plots" || !cfg.Submodules() || cfg.Strict() || cfg.MaxFileSizeMB != 25 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !strings.Contains(out.String(), "cannot start a branch name") {
		t.Error("expected a retry message")
	}
}

func TestRunSetupInputClosed(t *testing.T) {
	if _, err := RunSetup(strings.NewReader(""), &bytes.Buffer{}, Defaults()); err == nil {
		t.Error("expected error on closed input")
	}
}
