package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom-cli/internal/tui"
	"github.com/KaramelBytes/cleanloom-cli/internal/workflow"
)

var tuiOutDir string

var tuiCmd = &cobra.Command{
	Use:   "tui <file>",
	Short: "Review issues and pick fixes interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		path := args[0]
		ctx := cmd.Context()
		m, closeJournal := newMachine(ctx, c, tuiOutDir)
		defer closeJournal()

		load := func() (workflow.FileRef, error) { return readInput(path) }
		return tui.Run(tui.New(ctx, m, load, c.PageSize))
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	addTUIFlags()
}

func addTUIFlags() {
	tuiCmd.Flags().StringVarP(&tuiOutDir, "out", "o", "", "directory for exports (default: download_dir)")
}
