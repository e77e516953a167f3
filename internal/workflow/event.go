package workflow

import (
	"context"
	"time"

	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
)

type EventKind string

const (
	EventFileSelected EventKind = "file_selected"
	EventUploaded     EventKind = "uploaded"
	EventAnalyzed     EventKind = "analyzed"
	EventCleaned      EventKind = "cleaned"
	EventDownloaded   EventKind = "downloaded"
	EventFailed       EventKind = "failed"
	EventReset        EventKind = "reset"
)

// Event describes one completed step of a run. Only the fields relevant to
// Kind are set.
type Event struct {
	RunID string
	Kind  EventKind
	At    time.Time
	Stage Stage

	FileName string
	FileSize int64
	Digest   string

	FileID       string
	TotalRows    int
	TotalColumns int
	IssuesCount  int

	Selected        int
	Changes         remote.Changes
	CleanedFilename string

	Format string
	Path   string

	Err string
}

// Recorder receives run events. Failures are logged by the machine and never
// change the workflow outcome.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}
