package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/render"
	"github.com/fakeyudi/gitsession/internal/session"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current branch and session state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, err := render.ForFormat(statusFormat)
		if err != nil {
			return err
		}
		return withManager(cmd, func(m *session.Manager) error {
			if err := m.Refresh(cmd.Context()); err != nil {
				return err
			}
			data, err := renderer.Render(m.State())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		})
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", render.FormatText, "Output format: text, json or yaml")
	rootCmd.AddCommand(statusCmd)
}
