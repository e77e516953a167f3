package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/cleanloom-cli/internal/config"
	"github.com/KaramelBytes/cleanloom-cli/internal/download"
	"github.com/KaramelBytes/cleanloom-cli/internal/journal"
	"github.com/KaramelBytes/cleanloom-cli/internal/log"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/utils"
	"github.com/KaramelBytes/cleanloom-cli/internal/workflow"
)

func newClient(c *cfgpkg.Global) *remote.Client {
	return remote.NewClient(c.APIBaseURL, c.HTTPTimeout())
}

// openJournal returns nil when the journal is disabled or cannot be opened;
// a broken journal never blocks a run.
func openJournal(ctx context.Context, c *cfgpkg.Global) *journal.Journal {
	if !c.JournalEnabled {
		return nil
	}
	j, err := journal.Open(ctx, c.JournalPath)
	if err != nil {
		log.WithComponent("journal").Warn("journal unavailable", "path", c.JournalPath, "error", err)
		return nil
	}
	return j
}

// newMachine wires a workflow machine to the service, a download directory
// and the journal. The returned func releases the journal.
func newMachine(ctx context.Context, c *cfgpkg.Global, outDir string) (*workflow.Machine, func()) {
	client := newClient(c)
	if outDir == "" {
		outDir = c.DownloadDir
	}
	opts := workflow.Options{
		MaxUploadBytes: c.MaxUploadBytes(),
		RequestTimeout: c.HTTPTimeout(),
	}
	closer := func() {}
	if j := openJournal(ctx, c); j != nil {
		opts.Recorder = j
		closer = func() { _ = j.Close() }
	}
	exp := download.NewCoordinator(client, download.DirSaver{Dir: outDir})
	return workflow.New(client, exp, opts), closer
}

// readInput loads a local file for the workflow.
func readInput(path string) (workflow.FileRef, error) {
	p, err := utils.ExpandHome(path)
	if err != nil {
		return workflow.FileRef{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return workflow.FileRef{}, fmt.Errorf("read %s: %w", path, err)
	}
	return workflow.FileRef{Name: filepath.Base(p), Data: data}, nil
}

func checkOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unsupported --output: %s (use text, json or yaml)", format)
}

// writeStructured prints v as JSON or YAML. It reports false for text output.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch strings.ToLower(format) {
	case "json":
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return true, err
		}
		_, err = fmt.Fprintln(w, string(b))
		return true, err
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = w.Write(b)
		return true, err
	}
	return false, nil
}
