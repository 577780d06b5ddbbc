package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/config"
	"github.com/fakeyudi/gitsession/internal/hook"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure gitsession for this repository (re-run anytime to edit)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(repoRoot, config.ProjectFile)

		// The project file alone is edited so global values are not copied
		// into it.
		existing := config.Config{}
		if p, err := config.LoadProject(repoRoot); err == nil && p != nil {
			existing = *p
		}
		if existing.SessionPrefix == "" {
			existing.SessionPrefix = GetConfig().SessionPrefix
		}

		out := cmd.OutOrStdout()
		updated, err := config.RunSetup(cmd.InOrStdin(), out, existing)
		if err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
		if err := config.Merge(nil, &updated).Validate(); err != nil {
			return err
		}
		if err := config.Save(path, updated); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(out, "  ✓ Config saved to %s\n", path)

		if !hook.IsInstalled(repoRoot, "") {
			fmt.Fprintln(out, "  Tip: run 'gitsession hook install' to commit every agent interaction.")
		}
		fmt.Fprintln(out, "  Setup complete. Run 'gitsession start' to begin a session.")
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
