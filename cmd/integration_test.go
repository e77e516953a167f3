package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom-cli/internal/remote/remotetest"
)

// resetFlags re-registers command flags so values and Changed state from a
// previous invocation do not leak into the next one.
func resetFlags() {
	for _, c := range []struct {
		cmd *cobra.Command
		add func()
	}{
		{runCmd, addRunFlags},
		{previewCmd, addPreviewFlags},
		{tuiCmd, addTUIFlags},
		{historyCmd, addHistoryFlags},
		{journalCmd, addJournalFlags},
	} {
		c.cmd.ResetFlags()
		c.add()
	}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// mustExecute fails the test when the command returns an error.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// isolate points HOME and the working directory at temp dirs and, when srv
// is given, the client at the fake service.
func isolate(t *testing.T, srv *remotetest.Server) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	if srv != nil {
		t.Setenv("CLEANLOOM_API_BASE_URL", srv.BaseURL)
	}
	return home
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestCLI_PreviewPaging(t *testing.T) {
	home := isolate(t, nil)
	var b strings.Builder
	b.WriteString("id,name\n")
	for i := 1; i <= 45; i++ {
		fmt.Fprintf(&b, "%d,row%d\n", i, i)
	}
	p := writeFile(t, home, "big.csv", b.String())

	out := mustExecute(t, "preview", p, "--page", "3")
	if !strings.Contains(out, "Showing 41-45 of 45 rows (page 3/3)") {
		t.Fatalf("unexpected footer:\n%s", out)
	}
	if strings.Contains(out, "row40") || !strings.Contains(out, "row45") {
		t.Fatalf("wrong rows on page 3:\n%s", out)
	}

	out = mustExecute(t, "preview", p, "--page", "9")
	if !strings.Contains(out, "(page 3/3)") {
		t.Fatalf("page 9 should clamp to 3:\n%s", out)
	}

	out = mustExecute(t, "preview", p, "--all")
	if !strings.Contains(out, "row1") || !strings.Contains(out, "row45") {
		t.Fatalf("--all should show every row:\n%s", out)
	}
}

func TestCLI_PreviewUnsupported(t *testing.T) {
	home := isolate(t, nil)
	p := writeFile(t, home, "notes.txt", "hello")
	out := mustExecute(t, "preview", p)
	if !strings.Contains(out, "Unsupported file type") || !strings.Contains(out, "No local preview") {
		t.Fatalf("expected unsupported sentinel:\n%s", out)
	}
}

func TestCLI_RunEndToEndAndJournal(t *testing.T) {
	srv := remotetest.New(t)
	home := isolate(t, srv)
	p := writeFile(t, home, "data.csv", "a,b\n1,x\n1,x\n2,y\n")
	outDir := filepath.Join(home, "exports")

	out := mustExecute(t, "run", p, "--out", outDir, "--format", "csv,JSON")
	for _, want := range []string{"Duplicate Rows", "✓ 1 rows removed", "Final dataset: 2 rows × 2 columns", "✓ Saved"} {
		if !strings.Contains(out, want) {
			t.Fatalf("run output missing %q:\n%s", want, out)
		}
	}
	if got := srv.LastSelected(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("selected_issues = %v, want [7]", got)
	}
	for _, name := range []string{"data_cleaned.csv", "data_cleaned.json"} {
		b, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("export %s: %v", name, err)
		}
		if string(b) != "a,b\n1,x\n2,y\n" {
			t.Fatalf("export %s body = %q", name, b)
		}
	}

	out = mustExecute(t, "journal", "--output", "json")
	var runs []struct {
		RunID    string `json:"run_id"`
		FileName string `json:"file_name"`
		Stage    string `json:"stage"`
		Removed  int    `json:"rows_removed"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("journal json: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].FileName != "data.csv" || runs[0].Stage != "cleaned" || runs[0].Removed != 1 {
		t.Fatalf("unexpected journal: %+v", runs)
	}

	out = mustExecute(t, "journal", "show", runs[0].RunID)
	if !strings.Contains(out, "data_cleaned.json") {
		t.Fatalf("journal show should list downloads:\n%s", out)
	}
}

func TestCLI_RunJSONReport(t *testing.T) {
	srv := remotetest.New(t)
	home := isolate(t, srv)
	p := writeFile(t, home, "data.csv", "a,b\n1,x\n1,x\n2,y\n")

	out := mustExecute(t, "run", p, "--out", home, "--output", "json")
	var rep struct {
		FileID    string   `json:"file_id"`
		Selected  []int    `json:"selected_issues"`
		Downloads []string `json:"downloads"`
		Cleaning  struct {
			Changes struct {
				RowsRemoved int `json:"rows_removed"`
			} `json:"changes"`
		} `json:"cleaning"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("report json: %v\n%s", err, out)
	}
	if rep.FileID != "f1" || len(rep.Selected) != 1 || rep.Selected[0] != 7 || rep.Cleaning.Changes.RowsRemoved != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Downloads) != 1 || filepath.Base(rep.Downloads[0]) != "data_cleaned.csv" {
		t.Fatalf("downloads = %v", rep.Downloads)
	}
}

func TestCLI_RunSkipEverythingCleansNothing(t *testing.T) {
	srv := remotetest.New(t)
	home := isolate(t, srv)
	p := writeFile(t, home, "data.csv", "a,b\n1,x\n1,x\n")

	out := mustExecute(t, "run", p, "--skip", "7")
	if !strings.Contains(out, "nothing was cleaned") {
		t.Fatalf("expected warning:\n%s", out)
	}
	if n := srv.Calls(remotetest.OpClean); n != 0 {
		t.Fatalf("clean called %d times", n)
	}
}

func TestCLI_RunRejectsUnknownIssue(t *testing.T) {
	srv := remotetest.New(t)
	home := isolate(t, srv)
	p := writeFile(t, home, "data.csv", "a,b\n1,x\n")

	if _, err := execute(t, "run", p, "--only", "99"); err == nil || !strings.Contains(err.Error(), "unknown issue id 99") {
		t.Fatalf("expected unknown issue error, got %v", err)
	}
}

func TestCLI_RunUploadFailure(t *testing.T) {
	srv := remotetest.New(t)
	home := isolate(t, srv)
	srv.Fail(remotetest.OpUpload, 400, "Only CSV and Excel files are supported")
	p := writeFile(t, home, "data.csv", "a,b\n1,x\n")

	_, err := execute(t, "run", p)
	if err == nil || !strings.Contains(err.Error(), "failed to upload file") ||
		!strings.Contains(err.Error(), "Only CSV and Excel files are supported") {
		t.Fatalf("expected upload failure, got %v", err)
	}
}

func TestCLI_HistoryAndShowFallback(t *testing.T) {
	srv := remotetest.New(t)
	isolate(t, srv)
	srv.Configure(func(sc *remotetest.Script) {
		sc.History = json.RawMessage(`[{"file_id":"f1","original_filename":"sales.csv","upload_date":"2026-01-02T03:04:05",` +
			`"file_size":120,"total_rows":3,"total_columns":2,"issues_count":1,"status":"cleaned","rows_removed":1}]`)
	})

	out := mustExecute(t, "history")
	if !strings.Contains(out, "sales.csv") || !strings.Contains(out, "cleaned") {
		t.Fatalf("history listing:\n%s", out)
	}

	// No details configured: the fake answers 404 and show falls back to the listing.
	out = mustExecute(t, "history", "show", "f1")
	if !strings.Contains(out, "sales.csv") || !strings.Contains(out, "Issues found: 1") {
		t.Fatalf("history show fallback:\n%s", out)
	}

	if _, err := execute(t, "history", "show", "nope"); err == nil {
		t.Fatalf("expected error for unknown file id")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolate(t, nil)

	mustExecute(t, "config", "set", "page_size", "7")
	mustExecute(t, "config", "set", "download_dir", "/tmp/exports")
	if _, err := os.Stat(filepath.Join(home, ".cleanloom", "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}
	out := mustExecute(t, "config", "show")
	if !strings.Contains(out, "page_size: 7") || !strings.Contains(out, "download_dir: /tmp/exports") {
		t.Fatalf("config show:\n%s", out)
	}

	if _, err := execute(t, "config", "set", "page_size", "0"); err == nil {
		t.Fatalf("expected invalid value error")
	}
	if _, err := execute(t, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}
