// Package remotetest runs an in-process fake of the cleaning service for tests.
package remotetest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Op names used for failure injection, gates and call counters.
const (
	OpUpload   = "upload"
	OpAnalyze  = "analyze"
	OpClean    = "clean"
	OpDownload = "download"
	OpHistory  = "history"
	OpFile     = "file"
)

// Failure makes an op answer with Status and a {"detail": Detail} body.
type Failure struct {
	Status int
	Detail string
}

// Script is the set of canned responses the fake serves.
type Script struct {
	FileID        string
	UploadPreview json.RawMessage
	UploadColumns []string
	TotalRows     int
	TotalColumns  int

	Issues json.RawMessage
	// AnalysisRows, when set, is the row count analysis reports instead of TotalRows.
	AnalysisRows int

	RowsRemoved     int
	ValuesFixed     int
	ColumnsRenamed  int
	CleanedFilename string
	CleanPreview    json.RawMessage
	CleanedRows     int

	DownloadBody []byte
	// DownloadDisposition overrides the Content-Disposition header; "-" omits it.
	DownloadDisposition string

	History json.RawMessage
	Details map[string]json.RawMessage

	Failures map[string]Failure
	// Gates block an op until the channel is closed or the request is cancelled.
	Gates map[string]chan struct{}
}

// DefaultScript describes a three-row CSV with one duplicate row, reported as
// issue 7 and removed by cleaning.
func DefaultScript() Script {
	return Script{
		FileID:        "f1",
		UploadPreview: json.RawMessage(`[{"a":1,"b":"x"},{"a":1,"b":"x"},{"a":2,"b":"y"}]`),
		UploadColumns: []string{"a", "b"},
		TotalRows:     3,
		TotalColumns:  2,
		Issues: json.RawMessage(`[{"id":7,"type":"duplicates","severity":"high","title":"Duplicate Rows",` +
			`"description":"Found 1 duplicate rows","suggestion":"Remove duplicate rows","auto_fix":true}]`),
		RowsRemoved:     1,
		CleanedFilename: "data_cleaned.csv",
		CleanPreview:    json.RawMessage(`{"columns":["a","b"],"rows":[[1,"x"],[2,"y"]]}`),
		CleanedRows:     2,
		DownloadBody:    []byte("a,b\n1,x\n2,y\n"),
		History:         json.RawMessage(`[]`),
	}
}

// Server is the running fake. Requests are served under /api/v1.
type Server struct {
	URL     string
	BaseURL string

	srv *httptest.Server

	mu           sync.Mutex
	script       Script
	calls        map[string]int
	cleaned      bool
	lastSelected []int
	lastName     string
	lastBody     []byte
	lastFormat   string
}

// New starts a fake with DefaultScript and stops it when the test ends. The
// test is skipped when the sandbox forbids local listeners.
func New(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	s := &Server{script: DefaultScript(), calls: map[string]int{}}
	s.srv = httptest.NewUnstartedServer(s.routes())
	_ = s.srv.Listener.Close()
	s.srv.Listener = ln
	s.srv.Start()
	s.URL = s.srv.URL
	s.BaseURL = s.srv.URL + "/api/v1"
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Close() { s.srv.Close() }

// Configure edits the script under the server lock.
func (s *Server) Configure(fn func(*Script)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.script)
}

// Fail makes op answer with status and detail until cleared with status 0.
func (s *Server) Fail(op string, status int, detail string) {
	s.Configure(func(sc *Script) {
		if sc.Failures == nil {
			sc.Failures = map[string]Failure{}
		}
		if status == 0 {
			delete(sc.Failures, op)
			return
		}
		sc.Failures[op] = Failure{Status: status, Detail: detail}
	})
}

// Gate blocks op until the returned func is called.
func (s *Server) Gate(op string) (release func()) {
	ch := make(chan struct{})
	s.Configure(func(sc *Script) {
		if sc.Gates == nil {
			sc.Gates = map[string]chan struct{}{}
		}
		sc.Gates[op] = ch
	})
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Server) LastSelected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.lastSelected...)
}

func (s *Server) LastUpload() (name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastName, append([]byte(nil), s.lastBody...)
}

func (s *Server) LastFormat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFormat
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/analyze/{fileID}", s.handleAnalyze)
		r.Post("/clean/{fileID}", s.handleClean)
		r.Get("/download/{fileID}/{format}", s.handleDownload)
		r.Get("/history", s.handleHistory)
		r.Get("/file/{fileID}", s.handleFile)
	})
	return r
}

// begin counts the call, waits on a gate and reports an injected failure.
// It returns false when the response has already been written.
func (s *Server) begin(op string, w http.ResponseWriter, r *http.Request) (Script, bool) {
	s.mu.Lock()
	s.calls[op]++
	gate := s.script.Gates[op]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return Script{}, false
		}
	}

	s.mu.Lock()
	sc := s.script
	s.mu.Unlock()
	if f, ok := sc.Failures[op]; ok {
		writeDetail(w, f.Status, f.Detail)
		return sc, false
	}
	return sc, true
}

func (s *Server) knownFile(sc Script, w http.ResponseWriter, r *http.Request) bool {
	if chi.URLParam(r, "fileID") != sc.FileID {
		writeDetail(w, http.StatusNotFound, "File not found")
		return false
	}
	return true
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.begin(OpUpload, w, r)
	if !ok {
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file field required")
		return
	}
	defer file.Close()
	body, _ := io.ReadAll(file)
	lower := strings.ToLower(hdr.Filename)
	if !strings.HasSuffix(lower, ".csv") && !strings.HasSuffix(lower, ".xlsx") && !strings.HasSuffix(lower, ".xls") {
		writeDetail(w, http.StatusBadRequest, "Only CSV and Excel files are supported")
		return
	}

	s.mu.Lock()
	s.lastName = hdr.Filename
	s.lastBody = body
	s.cleaned = false
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":  sc.FileID,
		"filename": hdr.Filename,
		"preview":  sc.UploadPreview,
		"stats": map[string]any{
			"total_rows":    sc.TotalRows,
			"total_columns": sc.TotalColumns,
			"columns":       sc.UploadColumns,
			"file_size":     len(body),
		},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.begin(OpAnalyze, w, r)
	if !ok || !s.knownFile(sc, w, r) {
		return
	}
	rows := sc.TotalRows
	if sc.AnalysisRows > 0 {
		rows = sc.AnalysisRows
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id": sc.FileID,
		"issues":  sc.Issues,
		"stats": map[string]any{
			"total_rows":     rows,
			"total_columns":  sc.TotalColumns,
			"empty_rows":     0,
			"duplicate_rows": sc.RowsRemoved,
		},
	})
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.begin(OpClean, w, r)
	if !ok || !s.knownFile(sc, w, r) {
		return
	}
	var req struct {
		SelectedIssues []int `json:"selected_issues"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	s.lastSelected = req.SelectedIssues
	s.cleaned = true
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id": sc.FileID,
		"preview": sc.CleanPreview,
		"changes": map[string]int{
			"rows_removed":    sc.RowsRemoved,
			"values_fixed":    sc.ValuesFixed,
			"columns_renamed": sc.ColumnsRenamed,
		},
		"cleaned_filename": sc.CleanedFilename,
		"stats": map[string]int{
			"original_rows": sc.TotalRows,
			"cleaned_rows":  sc.CleanedRows,
			"rows_removed":  sc.TotalRows - sc.CleanedRows,
		},
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.begin(OpDownload, w, r)
	if !ok || !s.knownFile(sc, w, r) {
		return
	}
	format := chi.URLParam(r, "format")
	s.mu.Lock()
	s.lastFormat = format
	cleaned := s.cleaned
	s.mu.Unlock()
	if !cleaned {
		writeDetail(w, http.StatusBadRequest, "No cleaned data available")
		return
	}

	disp := sc.DownloadDisposition
	if disp == "" {
		base := strings.TrimSuffix(sc.CleanedFilename, path.Ext(sc.CleanedFilename))
		disp = fmt.Sprintf(`attachment; filename="%s.%s"`, base, strings.ToLower(format))
	}
	if disp != "-" {
		w.Header().Set("Content-Disposition", disp)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sc.DownloadBody)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.begin(OpHistory, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": sc.History})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.begin(OpFile, w, r)
	if !ok {
		return
	}
	d, found := sc.Details[chi.URLParam(r, "fileID")]
	if !found {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
