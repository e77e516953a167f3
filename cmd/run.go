package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom-cli/internal/download"
	"github.com/KaramelBytes/cleanloom-cli/internal/paging"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/render"
	"github.com/KaramelBytes/cleanloom-cli/internal/table"
	"github.com/KaramelBytes/cleanloom-cli/internal/workflow"
)

var (
	runSkip    []int
	runOnly    []int
	runFormats []string
	runOutDir  string
	runOutput  string
)

// runReport is the structured result of a non-interactive run.
type runReport struct {
	RunID     string                 `json:"run_id" yaml:"run_id"`
	File      string                 `json:"file" yaml:"file"`
	FileID    string                 `json:"file_id" yaml:"file_id"`
	Analysis  *remote.AnalysisResult `json:"analysis" yaml:"analysis"`
	Selected  []int                  `json:"selected_issues" yaml:"selected_issues"`
	Cleaning  *remote.CleaningResult `json:"cleaning,omitempty" yaml:"cleaning,omitempty"`
	Preview   *table.Table           `json:"cleaned_preview,omitempty" yaml:"cleaned_preview,omitempty"`
	Downloads []string               `json:"downloads" yaml:"downloads"`
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Upload, analyze, clean and download a file in one go",
	Long: `Run uploads the file, applies every suggested fix (narrow the set with
--only or --skip) and saves the cleaned data in each --format to --out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := checkOutputFormat(runOutput); err != nil {
			return err
		}
		if len(runOnly) > 0 && len(runSkip) > 0 {
			return fmt.Errorf("--only and --skip are mutually exclusive")
		}
		formats := make([]download.Format, 0, len(runFormats))
		for _, s := range runFormats {
			f, err := download.ParseFormat(s)
			if err != nil {
				return err
			}
			if !slices.Contains(formats, f) {
				formats = append(formats, f)
			}
		}
		ref, err := readInput(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		m, closeJournal := newMachine(ctx, c, runOutDir)
		defer closeJournal()

		if err := m.SelectFile(ref); err != nil {
			return err
		}
		if err := m.Submit(ctx); err != nil {
			return err
		}

		snap := m.Snapshot()
		if err := applySelection(m, snap.Issues()); err != nil {
			return err
		}
		snap = m.Snapshot()
		report := runReport{
			RunID:     snap.RunID,
			File:      ref.Name,
			FileID:    snap.FileID,
			Analysis:  snap.Analysis,
			Selected:  selectedIDs(snap),
			Downloads: []string{},
		}

		if len(report.Selected) > 0 {
			if err := m.ApplyCleanup(ctx); err != nil {
				return err
			}
			for _, f := range formats {
				p, err := m.Download(ctx, f)
				if err != nil {
					return err
				}
				report.Downloads = append(report.Downloads, p)
			}
			snap = m.Snapshot()
			report.Cleaning = snap.Cleaning
			report.Preview = &snap.CleanedPreview
		}

		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, runOutput, report); done {
			return err
		}

		th := render.NewDefaultTheme()
		fmt.Fprintln(out, render.AnalysisSummary(th, snap.Analysis))
		fmt.Fprintln(out, render.Issues(th, snap.Issues(), snap.Selection, -1))
		if report.Cleaning == nil {
			if len(snap.Issues()) > 0 {
				fmt.Fprintln(out, th.Warn.Render("⚠ No fixes selected; nothing was cleaned"))
			}
			return nil
		}
		fmt.Fprintln(out, render.CleaningSummary(th, report.Cleaning, snap.CleanedPreview))
		p := paging.New(c.PageSize)
		p.SetSource(snap.CleanedPreview)
		p.SetReportedTotal(report.Cleaning.Stats.CleanedRows)
		fmt.Fprintln(out, render.Page(th, snap.CleanedPreview.Columns, p.Window()))
		for _, path := range report.Downloads {
			fmt.Fprintf(out, "✓ Saved %s\n", path)
		}
		return nil
	},
}

// applySelection narrows the default all-selected state to --only or away
// from --skip. Ids the analysis did not report are rejected.
func applySelection(m *workflow.Machine, issues []remote.Issue) error {
	known := make(map[int]bool, len(issues))
	for _, is := range issues {
		known[is.ID] = true
	}
	for _, id := range append(slices.Clone(runOnly), runSkip...) {
		if !known[id] {
			return fmt.Errorf("unknown issue id %d", id)
		}
	}
	for _, is := range issues {
		deselect := slices.Contains(runSkip, is.ID) ||
			(len(runOnly) > 0 && !slices.Contains(runOnly, is.ID))
		if !deselect {
			continue
		}
		if _, err := m.Toggle(is.ID); err != nil {
			return err
		}
	}
	return nil
}

func selectedIDs(s workflow.Snapshot) []int {
	ids := []int{}
	for _, is := range s.Issues() {
		if s.Selection[is.ID] {
			ids = append(ids, is.ID)
		}
	}
	return ids
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags()
}

func addRunFlags() {
	runCmd.Flags().IntSliceVar(&runSkip, "skip", nil, "issue ids to leave unfixed")
	runCmd.Flags().IntSliceVar(&runOnly, "only", nil, "fix only these issue ids")
	runCmd.Flags().StringSliceVar(&runFormats, "format", []string{"csv"}, "export formats: csv, xlsx, json, sql")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "directory for exports (default: download_dir)")
	runCmd.Flags().StringVar(&runOutput, "output", "text", "report format: text, json or yaml")
}
