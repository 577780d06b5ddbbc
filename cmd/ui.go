package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/logger"
	"github.com/fakeyudi/gitsession/internal/session"
	"github.com/fakeyudi/gitsession/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive session dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd)
	},
}

func runDashboard(cmd *cobra.Command) error {
	// Log lines would corrupt the alternate screen.
	if flagLogFile == "" {
		logger.SetOutput(io.Discard)
	}
	return withManager(cmd, func(m *session.Manager) error {
		return tui.Run(cmd.Context(), m)
	})
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
