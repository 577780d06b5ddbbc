package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fakeyudi/gitsession/internal/atomicfile"
)

// DefaultCommand is the command registered as the Stop hook.
const DefaultCommand = "gitsession hook"

// SettingsPath returns the agent settings file the hook is registered in.
func SettingsPath(projectDir string) string {
	return filepath.Join(projectDir, ".claude", "settings.local.json")
}

// Install registers command as a Stop hook in the project's local agent
// settings, keeping every other setting intact, and prints what it did to
// w. Installing twice is a no-op.
func Install(projectDir, command string, w io.Writer) error {
	if command == "" {
		command = DefaultCommand
	}
	path := SettingsPath(projectDir)

	settings, err := readSettings(path)
	if err != nil {
		return err
	}
	if hasCommand(settings, command) {
		fmt.Fprintf(w, "\n  ✓ Stop hook already registered in %s\n\n", path)
		return nil
	}

	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		hooks = map[string]any{}
	}
	stop, _ := hooks["Stop"].([]any)
	stop = append(stop, map[string]any{
		"hooks": []any{
			map[string]any{"type": "command", "command": command},
		},
	})
	hooks["Stop"] = stop
	settings["hooks"] = hooks

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := atomicfile.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}

	fmt.Fprintf(w, "\n  ✓ Stop hook written to %s\n", path)
	fmt.Fprintf(w, "\n  Every agent reply now runs:\n    %s\n\n", command)
	return nil
}

// IsInstalled reports whether command is registered as a Stop hook.
func IsInstalled(projectDir, command string) bool {
	if command == "" {
		command = DefaultCommand
	}
	settings, err := readSettings(SettingsPath(projectDir))
	if err != nil {
		return false
	}
	return hasCommand(settings, command)
}

func readSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	settings := map[string]any{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return settings, nil
}

func hasCommand(settings map[string]any, command string) bool {
	hooks, _ := settings["hooks"].(map[string]any)
	stop, _ := hooks["Stop"].([]any)
	for _, matcher := range stop {
		m, _ := matcher.(map[string]any)
		inner, _ := m["hooks"].([]any)
		for _, h := range inner {
			entry, _ := h.(map[string]any)
			if entry["command"] == command {
				return true
			}
		}
	}
	return false
}
