package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gitsession/internal/transcript"
)

var (
	convertOutput  string
	convertSummary bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file|dir>",
	Short: "Render agent transcripts (.jsonl) as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", src)
			}
			return err
		}

		if !info.IsDir() {
			dst := ""
			if convertOutput != "" {
				stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
				dst = filepath.Join(convertOutput, stem+".md")
			}
			path, err := transcript.ConvertFile(src, dst)
			if err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		}

		written, err := transcript.ConvertDir(src, convertOutput)
		for _, p := range written {
			cmd.Printf("Wrote %s\n", p)
		}
		if err != nil {
			return err
		}
		if len(written) == 0 {
			cmd.Printf("No .jsonl files in %s\n", src)
			return nil
		}
		if convertSummary {
			path, err := transcript.WriteSummary(src, convertOutput)
			if err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Directory for the Markdown files (default: next to each transcript)")
	convertCmd.Flags().BoolVar(&convertSummary, "summary", false, "Also write "+transcript.SummaryFile+" when converting a directory")
	rootCmd.AddCommand(convertCmd)
}
