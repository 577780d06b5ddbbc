package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/hook"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle an agent Stop hook payload read from stdin",
	Long: `Reads the agent's Stop hook JSON from stdin, archives the transcript under
llm-sessions/<branch>/, appends the last exchange to the conversation log, and
on session branches commits the working tree.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetConfig()
		out, err := hook.Run(cmd.Context(), cmd.InOrStdin(), hook.Options{
			Prefix:      c.SessionPrefix,
			MaxFileSize: c.MaxFileSize(),
			Dir:         repoRoot,
		})
		for _, f := range out.Excluded {
			cmd.PrintErrf("warning: excluded large file %s (%.2f MB)\n", f.Path, float64(f.Size)/(1024*1024))
		}
		printWarnings(cmd.ErrOrStderr(), out.Warnings)
		if err != nil {
			return err
		}
		if out.Committed {
			cmd.Printf("Committed interaction on %s.\n", out.Branch)
		}
		return nil
	},
}

var hookCommand string

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the Stop hook in .claude/settings.local.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hook.Install(repoRoot, hookCommand, cmd.OutOrStdout())
	},
}

func init() {
	hookInstallCmd.Flags().StringVar(&hookCommand, "command", hook.DefaultCommand, "Command the hook runs")
	hookCmd.AddCommand(hookInstallCmd)
	rootCmd.AddCommand(hookCmd)
}
