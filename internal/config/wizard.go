package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fakeyudi/gitsession/internal/session"
)

// RunSetup asks for the project settings on in/out and returns the result.
// existing supplies the default for each prompt.
func RunSetup(in io.Reader, out io.Writer, existing Config) (Config, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		ans = strings.ToLower(ans)
		return ans == "y" || ans == "yes", nil
	}

	cfg := existing
	if cfg.SessionPrefix == "" {
		cfg.SessionPrefix = session.DefaultPrefix
	}
	if cfg.MaxFileSizeMB == 0 {
		cfg.MaxFileSizeMB = 10
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │      gitsession project setup   │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error
	for {
		cfg.SessionPrefix, err = ask("  Branch prefix", cfg.SessionPrefix)
		if err != nil {
			return Config{}, err
		}
		if session.ValidPrefix(cfg.SessionPrefix) {
			break
		}
		fmt.Fprintf(out, "  ⚠ %q cannot start a branch name, try again\n", cfg.SessionPrefix)
		cfg.SessionPrefix = session.DefaultPrefix
	}

	cfg.SessionName, err = ask("  Default session name (optional)", cfg.SessionName)
	if err != nil {
		return Config{}, err
	}

	subs, err := askBool("  Mirror sessions into submodules", cfg.Submodules())
	if err != nil {
		return Config{}, err
	}
	cfg.ManageSubmodules = Bool(subs)

	strict, err := askBool("  Refuse to return with uncommitted changes", cfg.Strict())
	if err != nil {
		return Config{}, err
	}
	cfg.StrictReturn = Bool(strict)

	size, err := ask("  Largest file to commit, in MB", strconv.FormatFloat(cfg.MaxFileSizeMB, 'f', -1, 64))
	if err != nil {
		return Config{}, err
	}
	if v, perr := strconv.ParseFloat(size, 64); perr == nil && v > 0 {
		cfg.MaxFileSizeMB = v
	} else {
		fmt.Fprintf(out, "  ⚠ %q is not a positive number, keeping %v\n", size, cfg.MaxFileSizeMB)
	}

	fmt.Fprintln(out)
	return cfg, nil
}
