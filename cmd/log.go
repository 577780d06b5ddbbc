package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/git"
	"github.com/fakeyudi/gitsession/internal/journal"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List recent session operations and their outcomes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gitDir, err := git.New(repoRoot).GitDir(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s is not inside a git repository: %w", repoRoot, err)
		}
		j, err := journal.Open(cmd.Context(), journal.PathFor(gitDir))
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Recent(cmd.Context(), logLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			cmd.Println("No operations recorded.")
			return nil
		}
		for _, e := range entries {
			cmd.Printf("%s  %-7s %-8s %s\n", e.StartedAt.Local().Format("2006-01-02 15:04:05"), e.Op, e.Outcome, e.Branch)
			if e.Error != "" {
				cmd.Printf("    error: %s\n", e.Error)
			}
			for _, w := range e.Warnings {
				cmd.Printf("    warning: %s\n", strings.TrimSpace(w))
			}
		}
		return nil
	},
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "Number of operations to show")
	rootCmd.AddCommand(logCmd)
}
