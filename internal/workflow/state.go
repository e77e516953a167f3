package workflow

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

// Stage is the position of one upload->clean round.
type Stage int

const (
	Idle Stage = iota
	LocalPreview
	Submitting
	Analyzed
	CleaningInProgress
	Cleaned
)

var stageNames = [...]string{
	Idle:               "idle",
	LocalPreview:       "local_preview",
	Submitting:         "submitting",
	Analyzed:           "analyzed",
	CleaningInProgress: "cleaning",
	Cleaned:            "cleaned",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// FileRef is a caller-owned file. The machine reads Data and never modifies it.
type FileRef struct {
	Name string
	Data []byte
}

var (
	// ErrBusy is returned when a remote call is already in flight.
	ErrBusy = errors.New("another request is still in progress")
	// ErrReset is returned to the caller of a request that finished after
	// Reset; its result has been discarded.
	ErrReset = errors.New("workflow was reset while the request was in flight")
)

// ValidationError rejects an operation that is not allowed right now. The
// stage is left untouched; Err is cleared as for any attempted action.
type ValidationError struct {
	Action string
	Stage  Stage
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot %s while %s: %s", e.Action, e.Stage, e.Reason)
}

// Snapshot is a copy of the observable state for renderers.
type Snapshot struct {
	Stage Stage
	Busy  bool
	Err   error
	RunID string

	FileName     string
	FileSize     int64
	LocalPreview table.Table

	FileID        string
	UploadPreview table.Table
	UploadStats   remote.Stats

	Analysis      *remote.AnalysisResult
	Selection     map[int]bool
	SelectedCount int

	Cleaning       *remote.CleaningResult
	CleanedPreview table.Table

	Downloads []string
}

// Current is the table a renderer should show for the stage.
func (s Snapshot) Current() table.Table {
	switch s.Stage {
	case Cleaned:
		return s.CleanedPreview
	case Analyzed, CleaningInProgress:
		return s.UploadPreview
	case LocalPreview, Submitting:
		return s.LocalPreview
	default:
		return table.New(nil, nil)
	}
}

// Issues returns the issues of the latest analysis, if any.
func (s Snapshot) Issues() []remote.Issue {
	if s.Analysis == nil {
		return nil
	}
	return s.Analysis.Issues
}
