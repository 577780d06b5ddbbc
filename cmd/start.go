package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/session"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Create a session branch and commit the current working tree to it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *session.Manager) error {
			res, err := m.Start(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Started session on %s (parent %s).\n", res.Branch, m.State().ParentBranch)
			printResult(cmd, res)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
