package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom-cli/internal/journal"
	"github.com/KaramelBytes/cleanloom-cli/internal/render"
)

var (
	journalLimit  int
	journalOutput string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent local runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOutputFormat(journalOutput); err != nil {
			return err
		}
		j, err := openJournalStrict(cmd)
		if err != nil {
			return err
		}
		defer j.Close()

		runs, err := j.Recent(cmd.Context(), journalLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, journalOutput, runs); done {
			return err
		}
		fmt.Fprintln(out, render.Journal(render.NewDefaultTheme(), runs))
		return nil
	},
}

type journalEntry struct {
	Run       *journal.Run       `json:"run" yaml:"run"`
	Downloads []journal.Download `json:"downloads" yaml:"downloads"`
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run_id>",
	Short: "Show one recorded run and its downloads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOutputFormat(journalOutput); err != nil {
			return err
		}
		j, err := openJournalStrict(cmd)
		if err != nil {
			return err
		}
		defer j.Close()

		ctx := cmd.Context()
		r, err := j.Get(ctx, args[0])
		if errors.Is(err, journal.ErrNotFound) {
			return fmt.Errorf("run %s not found in journal", args[0])
		}
		if err != nil {
			return err
		}
		dls, err := j.Downloads(ctx, r.RunID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, journalOutput, journalEntry{Run: r, Downloads: dls}); done {
			return err
		}
		th := render.NewDefaultTheme()
		fmt.Fprintln(out, render.Journal(th, []journal.Run{*r}))
		for _, d := range dls {
			fmt.Fprintf(out, "✓ %s %s (%s)\n", d.Format, d.Path, d.CreatedAt)
		}
		return nil
	},
}

// openJournalStrict opens the journal for reading and fails loudly, unlike the
// workflow path which carries on without one.
func openJournalStrict(cmd *cobra.Command) (*journal.Journal, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if !c.JournalEnabled {
		return nil, errors.New("journal is disabled (set journal_enabled to true)")
	}
	return journal.Open(cmd.Context(), c.JournalPath)
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalShowCmd)
	addJournalFlags()
}

func addJournalFlags() {
	journalCmd.PersistentFlags().IntVarP(&journalLimit, "limit", "n", 20, "number of runs to list")
	journalCmd.PersistentFlags().StringVar(&journalOutput, "output", "text", "output format: text, json or yaml")
}
