package workflow

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/KaramelBytes/cleanloom-cli/internal/download"
	"github.com/KaramelBytes/cleanloom-cli/internal/log"
	"github.com/KaramelBytes/cleanloom-cli/internal/parser"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/selection"
	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

// Service is the remote analysis/cleaning service.
type Service interface {
	Upload(ctx context.Context, name string, data []byte) (*remote.UploadResult, error)
	Analyze(ctx context.Context, fileID string) (*remote.AnalysisResult, error)
	Clean(ctx context.Context, fileID string, selected []int) (*remote.CleaningResult, error)
}

// Exporter fetches and saves a cleaned export, returning where it was saved.
type Exporter interface {
	Download(ctx context.Context, fileID string, f download.Format) (string, error)
}

var errNoResult = errors.New("service returned no result")

// DefaultMaxUploadBytes matches the 10 MB limit the service advertises.
const DefaultMaxUploadBytes = 10 << 20

type Options struct {
	// MaxUploadBytes rejects larger files before any request; <= 0 means the default.
	MaxUploadBytes int64
	// RequestTimeout bounds each remote call on top of the caller's context.
	RequestTimeout time.Duration
	Recorder       Recorder
}

// Machine sequences one upload->analyze->clean->download round at a time.
// All methods are safe for concurrent use; at most one remote call is in
// flight.
type Machine struct {
	svc  Service
	exp  Exporter
	opts Options

	mu    sync.Mutex
	stage Stage
	err   error
	gen   uint64
	// inflight is cleared only by the call that set it, so it survives Reset.
	inflight bool

	runID        string
	file         FileRef
	digest       string
	localPreview table.Table

	fileID        string
	uploadPreview table.Table
	uploadStats   remote.Stats

	analysis  *remote.AnalysisResult
	selection selection.Store

	cleaning       *remote.CleaningResult
	cleanedPreview table.Table

	downloads []string
}

func New(svc Service, exp Exporter, opts Options) *Machine {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Machine{svc: svc, exp: exp, opts: opts}
}

func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Err is the most recent failure, cleared when the next action is attempted,
// even one that is then rejected.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Machine) logger() *slog.Logger {
	return log.WithRun(m.runID).With(slog.String("component", "workflow"))
}

// SelectFile parses the file locally and moves Idle -> LocalPreview. Parse
// problems yield a sentinel preview, not an error.
func (m *Machine) SelectFile(ref FileRef) error {
	m.mu.Lock()
	m.err = nil
	if m.stage != Idle {
		st := m.stage
		m.mu.Unlock()
		return &ValidationError{Action: "select a file", Stage: st, Reason: "reset first"}
	}
	m.runID = uuid.NewString()
	m.file = ref
	sum := blake3.Sum256(ref.Data)
	m.digest = hex.EncodeToString(sum[:])
	m.localPreview = parser.Preview(ref.Name, ref.Data)
	m.stage = LocalPreview
	ev := m.event(EventFileSelected)
	lg := m.logger()
	sentinel := parser.IsSentinel(m.localPreview)
	m.mu.Unlock()

	lg.Info("file selected", "file", ref.Name, "bytes", len(ref.Data), "sentinel", sentinel)
	m.emit(ev)
	return nil
}

// Submit uploads the selected file and, once a file id is confirmed, asks for
// its analysis. Any failure returns the machine to LocalPreview.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	m.err = nil
	if m.inflight {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.stage != LocalPreview {
		st := m.stage
		m.mu.Unlock()
		return &ValidationError{Action: "submit", Stage: st, Reason: "select a file first"}
	}
	size := int64(len(m.file.Data))
	if size == 0 {
		m.mu.Unlock()
		return &ValidationError{Action: "submit", Stage: LocalPreview, Reason: "file is empty"}
	}
	if size > m.opts.MaxUploadBytes {
		m.mu.Unlock()
		return &ValidationError{Action: "submit", Stage: LocalPreview,
			Reason: fmt.Sprintf("file is %d bytes, limit is %d", size, m.opts.MaxUploadBytes)}
	}
	m.stage = Submitting
	m.inflight = true
	gen := m.gen
	ref := m.file
	lg := m.logger()
	m.mu.Unlock()

	cctx, cancel := m.callContext(ctx)
	up, err := m.svc.Upload(cctx, ref.Name, ref.Data)
	cancel()
	switch {
	case err == nil && up == nil:
		err = errNoResult
	case err == nil && up.FileID == "":
		err = errors.New("service returned no file id")
	}

	m.mu.Lock()
	if m.gen != gen {
		m.inflight = false
		m.mu.Unlock()
		return ErrReset
	}
	if err != nil {
		return m.failLocked(fmt.Errorf("failed to upload file: %w", err), LocalPreview, lg)
	}
	m.fileID = up.FileID
	m.uploadStats = up.Stats
	m.uploadPreview = table.Normalize(up.Preview)
	uploaded := m.event(EventUploaded)
	fileID := m.fileID
	m.mu.Unlock()
	lg.Info("uploaded", "file_id", fileID, "rows", up.Stats.TotalRows, "columns", up.Stats.TotalColumns)
	m.emit(uploaded)

	cctx, cancel = m.callContext(ctx)
	an, err := m.svc.Analyze(cctx, fileID)
	cancel()
	if err == nil && an == nil {
		err = errNoResult
	}

	m.mu.Lock()
	if m.gen != gen {
		m.inflight = false
		m.mu.Unlock()
		return ErrReset
	}
	if err != nil {
		m.fileID = ""
		m.uploadPreview = table.Table{}
		m.uploadStats = remote.Stats{}
		return m.failLocked(fmt.Errorf("failed to analyze data: %w", err), LocalPreview, lg)
	}
	if an.Issues == nil {
		an.Issues = []remote.Issue{}
	}
	m.analysis = an
	m.selection.Initialize(an.IssueIDs())
	m.stage = Analyzed
	m.inflight = false
	analyzed := m.event(EventAnalyzed)
	m.mu.Unlock()
	lg.Info("analyzed", "file_id", fileID, "issues", len(an.Issues))
	m.emit(analyzed)
	return nil
}

// Toggle flips the fix flag for one issue. Unknown ids are ignored.
func (m *Machine) Toggle(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage != Analyzed {
		return false, &ValidationError{Action: "toggle an issue", Stage: m.stage, Reason: "no analysis to select from"}
	}
	v, _ := m.selection.Toggle(id)
	return v, nil
}

// ApplyCleanup sends the selected issue ids for cleaning. Failure returns the
// machine to Analyzed with the selection intact.
func (m *Machine) ApplyCleanup(ctx context.Context) error {
	m.mu.Lock()
	m.err = nil
	if m.inflight {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.stage != Analyzed {
		st := m.stage
		m.mu.Unlock()
		return &ValidationError{Action: "apply cleanup", Stage: st, Reason: "analysis required"}
	}
	ids := m.selection.SelectedAmong(m.analysis.IssueIDs())
	if len(ids) == 0 {
		m.mu.Unlock()
		return &ValidationError{Action: "apply cleanup", Stage: Analyzed, Reason: "select at least one issue"}
	}
	m.stage = CleaningInProgress
	m.inflight = true
	gen := m.gen
	fileID := m.fileID
	lg := m.logger()
	m.mu.Unlock()

	cctx, cancel := m.callContext(ctx)
	res, err := m.svc.Clean(cctx, fileID, ids)
	cancel()
	if err == nil && res == nil {
		err = errNoResult
	}

	m.mu.Lock()
	if m.gen != gen {
		m.inflight = false
		m.mu.Unlock()
		return ErrReset
	}
	if err != nil {
		return m.failLocked(fmt.Errorf("failed to clean data: %w", err), Analyzed, lg)
	}
	m.cleaning = res
	m.cleanedPreview = table.Normalize(res.Preview)
	m.stage = Cleaned
	m.inflight = false
	ev := m.event(EventCleaned)
	ev.Selected = len(ids)
	m.mu.Unlock()
	lg.Info("cleaned", "file_id", fileID, "selected", ids, "rows_removed", res.Changes.RowsRemoved)
	m.emit(ev)
	return nil
}

// Download saves the cleaned data in format f. The stage stays Cleaned either
// way; a failure only sets Err.
func (m *Machine) Download(ctx context.Context, f download.Format) (string, error) {
	m.mu.Lock()
	m.err = nil
	if m.inflight {
		m.mu.Unlock()
		return "", ErrBusy
	}
	if m.stage != Cleaned {
		st := m.stage
		m.mu.Unlock()
		return "", &ValidationError{Action: "download", Stage: st, Reason: "cleaned data required"}
	}
	if m.exp == nil {
		m.mu.Unlock()
		return "", &ValidationError{Action: "download", Stage: Cleaned, Reason: "no download target configured"}
	}
	m.inflight = true
	gen := m.gen
	fileID := m.fileID
	lg := m.logger()
	m.mu.Unlock()

	cctx, cancel := m.callContext(ctx)
	p, err := m.exp.Download(cctx, fileID, f)
	cancel()

	m.mu.Lock()
	if m.gen != gen {
		m.inflight = false
		m.mu.Unlock()
		return "", ErrReset
	}
	if err != nil {
		return "", m.failLocked(fmt.Errorf("failed to download %s: %w", f, err), Cleaned, lg)
	}
	m.downloads = append(m.downloads, p)
	m.inflight = false
	ev := m.event(EventDownloaded)
	ev.Format = string(f)
	ev.Path = p
	m.mu.Unlock()
	lg.Info("downloaded", "format", string(f), "path", p)
	m.emit(ev)
	return p, nil
}

// Reset discards the whole round and returns to Idle. It is allowed at any
// time; a request still in flight is left to finish and its result dropped.
// Until it returns, new remote calls fail with ErrBusy.
func (m *Machine) Reset() {
	m.mu.Lock()
	prev := m.runID
	stage := m.stage
	m.gen++
	m.stage = Idle
	m.err = nil
	m.runID = ""
	m.file = FileRef{}
	m.digest = ""
	m.localPreview = table.Table{}
	m.fileID = ""
	m.uploadPreview = table.Table{}
	m.uploadStats = remote.Stats{}
	m.analysis = nil
	m.selection.Initialize(nil)
	m.cleaning = nil
	m.cleanedPreview = table.Table{}
	m.downloads = nil
	m.mu.Unlock()

	if prev != "" {
		log.WithRun(prev).Debug("reset", "component", "workflow", "from", stage.String())
		m.emit(Event{RunID: prev, Kind: EventReset, At: time.Now().UTC(), Stage: stage})
	}
}

// Snapshot copies the observable state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Stage:          m.stage,
		Busy:           m.inflight,
		Err:            m.err,
		RunID:          m.runID,
		FileName:       m.file.Name,
		FileSize:       int64(len(m.file.Data)),
		LocalPreview:   m.localPreview,
		FileID:         m.fileID,
		UploadPreview:  m.uploadPreview,
		UploadStats:    m.uploadStats,
		Analysis:       m.analysis,
		Selection:      m.selection.Snapshot(),
		SelectedCount:  m.selection.Count(),
		Cleaning:       m.cleaning,
		CleanedPreview: m.cleanedPreview,
		Downloads:      append([]string(nil), m.downloads...),
	}
}

// failLocked records err, moves to stage and releases the lock.
func (m *Machine) failLocked(err error, stage Stage, lg *slog.Logger) error {
	m.err = err
	m.stage = stage
	m.inflight = false
	ev := m.event(EventFailed)
	ev.Err = err.Error()
	m.mu.Unlock()
	lg.Warn("request failed", "error", err, "stage", stage.String())
	m.emit(ev)
	return err
}

func (m *Machine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, m.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// event builds an Event from the current state; the caller holds the lock.
func (m *Machine) event(kind EventKind) Event {
	ev := Event{
		RunID:    m.runID,
		Kind:     kind,
		At:       time.Now().UTC(),
		Stage:    m.stage,
		FileName: m.file.Name,
		FileSize: int64(len(m.file.Data)),
		Digest:   m.digest,
		FileID:   m.fileID,
	}
	ev.TotalRows = m.uploadStats.TotalRows
	ev.TotalColumns = m.uploadStats.TotalColumns
	if m.analysis != nil {
		ev.IssuesCount = len(m.analysis.Issues)
		if m.analysis.Stats.TotalRows > 0 {
			ev.TotalRows = m.analysis.Stats.TotalRows
			ev.TotalColumns = m.analysis.Stats.TotalColumns
		}
	}
	if m.cleaning != nil {
		ev.Changes = m.cleaning.Changes
		ev.CleanedFilename = m.cleaning.CleanedFilename
	}
	return ev
}

func (m *Machine) emit(ev Event) {
	if m.opts.Recorder == nil || ev.RunID == "" {
		return
	}
	if err := m.opts.Recorder.Record(context.Background(), ev); err != nil {
		log.WithRun(ev.RunID).Warn("journal write failed", "component", "workflow", "kind", string(ev.Kind), "error", err)
	}
}
