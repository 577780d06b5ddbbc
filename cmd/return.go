package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/session"
)

var returnCmd = &cobra.Command{
	Use:   "return",
	Short: "End the active session and switch back to its parent branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *session.Manager) error {
			res, err := m.ReturnToParent(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Returned to %s.\n", res.Branch)
			printResult(cmd, res)
			return nil
		})
	},
}

var pushRemote string

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the active session branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *session.Manager) error {
			res, err := m.Push(cmd.Context(), pushRemote)
			if err != nil {
				return err
			}
			cmd.Printf("Pushed %s.\n", res.Branch)
			printResult(cmd, res)
			return nil
		})
	},
}

func init() {
	pushCmd.Flags().StringVar(&pushRemote, "remote", "", "Remote to push to (default from config, then origin)")
	rootCmd.AddCommand(returnCmd)
	rootCmd.AddCommand(pushCmd)
}
