package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/session"
	"github.com/fakeyudi/gitsession/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Commit progress automatically whenever files change",
	Long: `Watches the repository and, once changes have settled for the configured
debounce period, commits them to the active session branch. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *session.Manager) error {
			c := GetConfig()
			w, err := watcher.New(m, watcher.Options{
				Dir:            m.Options().RepoPath,
				Debounce:       c.WatchDebounce(),
				IgnorePatterns: c.IgnorePatterns,
				OnCommit: func(res session.Result, err error) {
					switch {
					case errors.Is(err, session.ErrNoActiveSession):
					case err != nil:
						cmd.PrintErrf("error: %v\n", err)
					case res.Committed:
						cmd.Printf("Committed changes on %s.\n", res.Branch)
						printResult(cmd, res)
					}
				},
			})
			if err != nil {
				return err
			}
			cmd.Printf("Watching %s (Ctrl+C to stop).\n", m.Options().RepoPath)
			return w.Run(cmd.Context())
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
