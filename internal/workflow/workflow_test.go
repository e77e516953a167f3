package workflow

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/cleanloom-cli/internal/download"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote/remotetest"
)

const threeRows = "a,b\n1,x\n1,x\n2,y\n"

type memRecorder struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (r *memRecorder) Record(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.fail {
		return errors.New("disk full")
	}
	return nil
}

func (r *memRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	m   *Machine
	srv *remotetest.Server
	rec *memRecorder
	dir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := remotetest.New(t)
	client := remote.NewClient(srv.BaseURL, 5*time.Second)
	dir := t.TempDir()
	rec := &memRecorder{}
	m := New(client, download.NewCoordinator(client, download.DirSaver{Dir: dir}), Options{
		RequestTimeout: 5 * time.Second,
		Recorder:       rec,
	})
	return &fixture{m: m, srv: srv, rec: rec, dir: dir}
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SelectFile(FileRef{Name: "data.csv", Data: []byte(threeRows)}))
	snap := f.m.Snapshot()
	assert.Equal(t, LocalPreview, snap.Stage)
	assert.Equal(t, []string{"a", "b"}, snap.LocalPreview.Columns)
	assert.Len(t, snap.LocalPreview.Rows, 3)

	require.NoError(t, f.m.Submit(ctx))
	snap = f.m.Snapshot()
	assert.Equal(t, Analyzed, snap.Stage)
	assert.Equal(t, "f1", snap.FileID)
	assert.Equal(t, map[int]bool{7: true}, snap.Selection)
	assert.Equal(t, []string{"a", "b"}, snap.Current().Columns)

	require.NoError(t, f.m.ApplyCleanup(ctx))
	assert.Equal(t, []int{7}, f.srv.LastSelected())
	snap = f.m.Snapshot()
	assert.Equal(t, Cleaned, snap.Stage)
	assert.Equal(t, 1, snap.Cleaning.Changes.RowsRemoved)
	assert.Len(t, snap.CleanedPreview.Rows, 2)

	p, err := f.m.Download(ctx, download.CSV)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "data_cleaned.csv"), p)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,x\n2,y\n", string(b))
	assert.Equal(t, Cleaned, f.m.Stage())
	assert.NoError(t, f.m.Err())

	assert.Equal(t, []EventKind{EventFileSelected, EventUploaded, EventAnalyzed, EventCleaned, EventDownloaded}, f.rec.kinds())
	first := f.rec.events[0]
	assert.NotEmpty(t, first.RunID)
	assert.Len(t, first.Digest, 64)
	for _, ev := range f.rec.events {
		assert.Equal(t, first.RunID, ev.RunID)
	}
}

func TestUnsupportedFileThenReset(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.m.SelectFile(FileRef{Name: "notes.txt", Data: []byte("hello")}))
	snap := f.m.Snapshot()
	assert.Equal(t, LocalPreview, snap.Stage)
	assert.Equal(t, []string{"Preview not available"}, snap.LocalPreview.Columns)
	assert.Equal(t, "Unsupported file type", snap.LocalPreview.Rows[0][0])

	f.m.Reset()
	snap = f.m.Snapshot()
	assert.Equal(t, Idle, snap.Stage)
	assert.Empty(t, snap.FileName)
	assert.Empty(t, snap.LocalPreview.Columns)
	assert.Equal(t, 0, f.srv.Calls(remotetest.OpUpload))
}

func TestGuardsLeaveStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ve *ValidationError

	require.ErrorAs(t, f.m.Submit(ctx), &ve)
	require.ErrorAs(t, f.m.ApplyCleanup(ctx), &ve)
	_, err := f.m.Download(ctx, download.CSV)
	require.ErrorAs(t, err, &ve)
	_, err = f.m.Toggle(1)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, Idle, f.m.Stage())
	assert.NoError(t, f.m.Err())

	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))
	require.ErrorAs(t, f.m.SelectFile(FileRef{Name: "b.csv"}), &ve)
	require.ErrorAs(t, f.m.ApplyCleanup(ctx), &ve)
	assert.Equal(t, LocalPreview, f.m.Stage())

	require.NoError(t, f.m.Submit(ctx))
	_, err = f.m.Download(ctx, download.CSV)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, Analyzed, f.m.Stage())
	assert.Equal(t, 0, f.srv.Calls(remotetest.OpDownload))
}

func TestApplyCleanupNeedsSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))
	require.NoError(t, f.m.Submit(ctx))

	v, err := f.m.Toggle(7)
	require.NoError(t, err)
	assert.False(t, v)

	var ve *ValidationError
	require.ErrorAs(t, f.m.ApplyCleanup(ctx), &ve)
	assert.Equal(t, Analyzed, f.m.Stage())
	assert.Equal(t, 0, f.srv.Calls(remotetest.OpClean))

	_, err = f.m.Toggle(99)
	require.NoError(t, err)
	v, _ = f.m.Toggle(7)
	assert.True(t, v)
	require.NoError(t, f.m.ApplyCleanup(ctx))
}

func TestUploadFailureReturnsToLocalPreview(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail(remotetest.OpUpload, http.StatusInternalServerError, "boom")
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))

	err := f.m.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload file")
	assert.Equal(t, LocalPreview, f.m.Stage())
	assert.Equal(t, err, f.m.Err())
	assert.Equal(t, 0, f.srv.Calls(remotetest.OpAnalyze))

	f.srv.Fail(remotetest.OpUpload, 0, "")
	require.NoError(t, f.m.Submit(context.Background()))
	assert.NoError(t, f.m.Err())
	assert.Equal(t, Analyzed, f.m.Stage())
}

func TestAnalyzeFailureReturnsToLocalPreview(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail(remotetest.OpAnalyze, http.StatusNotFound, "File not found")
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))

	err := f.m.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to analyze data")
	var nf *remote.NotFoundError
	assert.ErrorAs(t, err, &nf)
	snap := f.m.Snapshot()
	assert.Equal(t, LocalPreview, snap.Stage)
	assert.Empty(t, snap.FileID)
}

func TestCleanFailureKeepsSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.Configure(func(sc *remotetest.Script) {
		sc.Issues = []byte(`[{"id":1,"severity":"low","title":"a","description":""},{"id":2,"severity":"medium","title":"b","description":""}]`)
	})
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))
	require.NoError(t, f.m.Submit(ctx))
	_, _ = f.m.Toggle(1)

	f.srv.Fail(remotetest.OpClean, http.StatusInternalServerError, "nope")
	err := f.m.ApplyCleanup(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clean data")
	snap := f.m.Snapshot()
	assert.Equal(t, Analyzed, snap.Stage)
	assert.Equal(t, map[int]bool{1: false, 2: true}, snap.Selection)

	f.srv.Fail(remotetest.OpClean, 0, "")
	require.NoError(t, f.m.ApplyCleanup(ctx))
	assert.Equal(t, []int{2}, f.srv.LastSelected())
}

func TestDownloadFailureStaysCleaned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))
	require.NoError(t, f.m.Submit(ctx))
	require.NoError(t, f.m.ApplyCleanup(ctx))

	f.srv.Fail(remotetest.OpDownload, http.StatusInternalServerError, "export failed")
	_, err := f.m.Download(ctx, download.SQL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download sql")
	assert.Equal(t, Cleaned, f.m.Stage())
	assert.Error(t, f.m.Err())
}

func TestFileSizeLimits(t *testing.T) {
	srv := remotetest.New(t)
	client := remote.NewClient(srv.BaseURL, time.Second)
	m := New(client, nil, Options{MaxUploadBytes: 4})
	var ve *ValidationError

	require.NoError(t, m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))
	require.ErrorAs(t, m.Submit(context.Background()), &ve)
	assert.Contains(t, ve.Reason, "limit")
	m.Reset()

	require.NoError(t, m.SelectFile(FileRef{Name: "empty.csv"}))
	require.ErrorAs(t, m.Submit(context.Background()), &ve)
	assert.Equal(t, "file is empty", ve.Reason)
	assert.Equal(t, 0, srv.Calls(remotetest.OpUpload))
}

func TestBusyRejectsSecondCall(t *testing.T) {
	f := newFixture(t)
	release := f.srv.Gate(remotetest.OpUpload)
	defer release()
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))

	done := make(chan error, 1)
	go func() { done <- f.m.Submit(context.Background()) }()
	require.Eventually(t, func() bool { return f.srv.Calls(remotetest.OpUpload) == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, f.m.Submit(context.Background()), ErrBusy)
	assert.ErrorIs(t, f.m.ApplyCleanup(context.Background()), ErrBusy)
	snap := f.m.Snapshot()
	assert.True(t, snap.Busy)
	assert.Equal(t, Submitting, snap.Stage)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, Analyzed, f.m.Stage())
	assert.Equal(t, 1, f.srv.Calls(remotetest.OpUpload))
}

func TestResetDuringFlightDiscardsResult(t *testing.T) {
	f := newFixture(t)
	release := f.srv.Gate(remotetest.OpUpload)
	defer release()
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))

	done := make(chan error, 1)
	go func() { done <- f.m.Submit(context.Background()) }()
	require.Eventually(t, func() bool { return f.srv.Calls(remotetest.OpUpload) == 1 }, 2*time.Second, 5*time.Millisecond)

	f.m.Reset()
	assert.Equal(t, Idle, f.m.Stage())
	release()

	assert.ErrorIs(t, <-done, ErrReset)
	snap := f.m.Snapshot()
	assert.Equal(t, Idle, snap.Stage)
	assert.Empty(t, snap.FileID)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 0, f.srv.Calls(remotetest.OpAnalyze))
}

func TestResetKeepsInFlightCallExclusive(t *testing.T) {
	f := newFixture(t)
	release := f.srv.Gate(remotetest.OpUpload)
	defer release()
	ctx := context.Background()
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))

	done := make(chan error, 1)
	go func() { done <- f.m.Submit(ctx) }()
	require.Eventually(t, func() bool { return f.srv.Calls(remotetest.OpUpload) == 1 }, 2*time.Second, 5*time.Millisecond)

	f.m.Reset()
	require.NoError(t, f.m.SelectFile(FileRef{Name: "b.csv", Data: []byte(threeRows)}))
	assert.ErrorIs(t, f.m.Submit(ctx), ErrBusy)
	assert.True(t, f.m.Snapshot().Busy)
	assert.Equal(t, LocalPreview, f.m.Stage())
	assert.Equal(t, 1, f.srv.Calls(remotetest.OpUpload))

	release()
	assert.ErrorIs(t, <-done, ErrReset)
	assert.False(t, f.m.Snapshot().Busy)
	require.NoError(t, f.m.Submit(ctx))
	assert.Equal(t, Analyzed, f.m.Stage())
	assert.Equal(t, 2, f.srv.Calls(remotetest.OpUpload))
	name, _ := f.srv.LastUpload()
	assert.Equal(t, "b.csv", name)
}

func TestRejectedAttemptClearsErr(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.Fail(remotetest.OpUpload, http.StatusInternalServerError, "boom")
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))
	require.Error(t, f.m.Submit(ctx))
	require.Error(t, f.m.Err())

	var ve *ValidationError
	require.ErrorAs(t, f.m.ApplyCleanup(ctx), &ve)
	assert.NoError(t, f.m.Err())
	assert.Equal(t, LocalPreview, f.m.Stage())
}

// nilService answers every call with no result and no error.
type nilService struct{}

func (nilService) Upload(context.Context, string, []byte) (*remote.UploadResult, error) {
	return nil, nil
}

func (nilService) Analyze(context.Context, string) (*remote.AnalysisResult, error) {
	return nil, nil
}

func (nilService) Clean(context.Context, string, []int) (*remote.CleaningResult, error) {
	return nil, nil
}

// uploadOnly delegates Upload and reports nothing for the other calls.
type uploadOnly struct {
	nilService
	up *remote.UploadResult
	an *remote.AnalysisResult
}

func (s uploadOnly) Upload(context.Context, string, []byte) (*remote.UploadResult, error) {
	return s.up, nil
}

func (s uploadOnly) Analyze(context.Context, string) (*remote.AnalysisResult, error) {
	return s.an, nil
}

func TestEmptyServiceResultsFailInsteadOfPanicking(t *testing.T) {
	ctx := context.Background()
	ref := FileRef{Name: "a.csv", Data: []byte(threeRows)}

	m := New(nilService{}, nil, Options{})
	require.NoError(t, m.SelectFile(ref))
	err := m.Submit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service returned no result")
	assert.Equal(t, LocalPreview, m.Stage())

	up := &remote.UploadResult{FileID: "f1"}
	m = New(uploadOnly{up: up}, nil, Options{})
	require.NoError(t, m.SelectFile(ref))
	err = m.Submit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to analyze data")
	assert.Empty(t, m.Snapshot().FileID)

	an := &remote.AnalysisResult{Issues: []remote.Issue{{ID: 1, Title: "Empty Values"}}}
	m = New(uploadOnly{up: up, an: an}, nil, Options{})
	require.NoError(t, m.SelectFile(ref))
	require.NoError(t, m.Submit(ctx))
	err = m.ApplyCleanup(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service returned no result")
	assert.Equal(t, Analyzed, m.Stage())
}

func TestRecorderFailureDoesNotFailWorkflow(t *testing.T) {
	f := newFixture(t)
	f.rec.fail = true
	require.NoError(t, f.m.SelectFile(FileRef{Name: "a.csv", Data: []byte(threeRows)}))
	require.NoError(t, f.m.Submit(context.Background()))
	assert.NoError(t, f.m.Err())
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "cleaning", CleaningInProgress.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
