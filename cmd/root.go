package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/config"
	"github.com/fakeyudi/gitsession/internal/git"
	"github.com/fakeyudi/gitsession/internal/logger"
	"github.com/fakeyudi/gitsession/internal/session"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// repoRoot is the repository top level (or the --repo directory when it is
// not inside a repository).
var repoRoot string

var (
	flagRepo       string
	flagName       string
	flagSubmodules bool
	flagDebug      bool
	flagLogFile    string
)

var rootCmd = &cobra.Command{
	Use:   "gitsession",
	Short: "Run experiments on throwaway git session branches",
	Long: `gitsession starts timestamped session branches, commits progress on them,
and switches back to the branch you started from when the experiment is done.

Run without arguments on a terminal to open the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetDebug(flagDebug)
		if err := logger.Init(flagLogFile); err != nil {
			return err
		}

		dir := flagRepo
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			dir = wd
		}
		repoRoot = dir
		if top, err := git.New(dir).TopLevel(cmd.Context()); err == nil {
			repoRoot = top
		}

		loaded, err := config.Load(repoRoot)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		if flagRepo == "" && cfg.RepoPath != "" {
			repoRoot = cfg.RepoPath
		}
		if cmd.Flags().Changed("name") {
			cfg.SessionName = flagName
		}
		if cmd.Flags().Changed("submodules") {
			cfg.ManageSubmodules = config.Bool(flagSubmodules)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stdout.Fd()) {
			return runDashboard(cmd)
		}
		return cmd.Help()
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// openManager opens the session manager for the selected repository.
func openManager(cmd *cobra.Command) (*session.Manager, error) {
	c := GetConfig()
	return session.Open(cmd.Context(), session.Options{
		RepoPath:            repoRoot,
		Prefix:              c.SessionPrefix,
		SessionName:         c.SessionName,
		ManageSubmodules:    c.Submodules(),
		IgnoreSubmoduleDirt: c.IgnoreDirtySubmodules(),
		StrictReturn:        c.Strict(),
		MaxFileSize:         c.MaxFileSize(),
		Signature:           c.Signature,
		Remote:              c.Remote,
	})
}

// withManager opens a manager, runs fn, and closes it.
func withManager(cmd *cobra.Command, fn func(*session.Manager) error) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

// printResult reports what an operation did, with warnings on stderr.
func printResult(cmd *cobra.Command, res session.Result) {
	for _, f := range res.Excluded {
		cmd.Printf("Excluded large file %s (%.2f MB)\n", f.Path, float64(f.Size)/(1024*1024))
	}
	for _, t := range res.Tags {
		cmd.Printf("Tagged %s\n", t)
	}
	for _, s := range res.Submodules {
		if s.Err == nil {
			cmd.Printf("  submodule %s: %s\n", s.Path, s.Action)
		}
	}
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRepo, "repo", "", "Repository to operate on (default: current directory)")
	pf.StringVar(&flagName, "name", "", "Session name appended to new branch names")
	pf.BoolVar(&flagSubmodules, "submodules", false, "Mirror session branches into submodules")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLogFile, "log-file", "", "Write logs to this file instead of stderr")
}
