package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom-cli/internal/paging"
	"github.com/KaramelBytes/cleanloom-cli/internal/parser"
	"github.com/KaramelBytes/cleanloom-cli/internal/render"
)

var (
	previewPage int
	previewAll  bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Show a local preview of a CSV or Excel file without uploading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := readInput(args[0])
		if err != nil {
			return err
		}
		size := paging.DefaultPageSize
		if cfg != nil {
			size = cfg.PageSize
		}
		t := parser.Preview(ref.Name, ref.Data)
		p := paging.New(size)
		p.SetSource(t)
		p.SetShowAll(previewAll)
		p.GoTo(previewPage)

		out := cmd.OutOrStdout()
		th := render.NewDefaultTheme()
		fmt.Fprintln(out, th.Title.Render(ref.Name))
		fmt.Fprintln(out, render.Page(th, t.Columns, p.Window()))
		if parser.IsSentinel(t) {
			fmt.Fprintln(out, th.Warn.Render("⚠ No local preview for this file"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	addPreviewFlags()
}

func addPreviewFlags() {
	previewCmd.Flags().IntVar(&previewPage, "page", 1, "page to show (clamped to the last page)")
	previewCmd.Flags().BoolVar(&previewAll, "all", false, "show every row")
}
