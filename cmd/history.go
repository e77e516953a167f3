package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom-cli/internal/log"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/render"
)

var historyOutput string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List files processed by the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := checkOutputFormat(historyOutput); err != nil {
			return err
		}
		recs, err := newClient(c).History(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, historyOutput, recs); done {
			return err
		}
		fmt.Fprintln(out, render.History(render.NewDefaultTheme(), recs))
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <file_id>",
	Short: "Show details of one processed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := checkOutputFormat(historyOutput); err != nil {
			return err
		}
		ctx := cmd.Context()
		client := newClient(c)
		rec, err := client.FileDetails(ctx, args[0])
		if err != nil {
			// The listing carries the same summary; use it when details fail.
			log.WithComponent("history").Debug("file details failed, using history listing", "file_id", args[0], "error", err)
			fallback, lerr := findInHistory(cmd, client, args[0])
			if lerr != nil || fallback == nil {
				return fmt.Errorf("failed to load file details: %w", err)
			}
			rec = fallback
		}
		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, historyOutput, rec); done {
			return err
		}
		fmt.Fprintln(out, render.HistoryDetail(render.NewDefaultTheme(), *rec))
		return nil
	},
}

func findInHistory(cmd *cobra.Command, client *remote.Client, fileID string) (*remote.HistoryRecord, error) {
	recs, err := client.History(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].FileID == fileID {
			return &recs[i], nil
		}
	}
	return nil, nil
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	addHistoryFlags()
}

func addHistoryFlags() {
	historyCmd.PersistentFlags().StringVar(&historyOutput, "output", "text", "output format: text, json or yaml")
}
