package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/session"
)

var commitFinal bool

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit all changes on the active session branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *session.Manager) error {
			res, err := m.Commit(cmd.Context(), commitFinal)
			if err != nil {
				return err
			}
			if res.Committed {
				cmd.Printf("Committed changes on %s.\n", res.Branch)
			} else {
				cmd.Println("Nothing to commit.")
			}
			printResult(cmd, res)
			return nil
		})
	},
}

var endCmd = &cobra.Command{
	Use:    "end",
	Short:  "Make the final commit and tag the end of the active session",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *session.Manager) error {
			res, err := m.End(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Ended session %s.\n", res.Branch)
			printResult(cmd, res)
			return nil
		})
	},
}

func init() {
	commitCmd.Flags().BoolVar(&commitFinal, "final", false, "Label the commit as the session's final commit")
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(endCmd)
}
