// Package journal keeps a local SQLite record of workflow runs.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/cleanloom-cli/internal/workflow"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Run is one upload->clean round as last recorded.
type Run struct {
	RunID           string `db:"run_id" json:"run_id" yaml:"run_id"`
	FileName        string `db:"file_name" json:"file_name" yaml:"file_name"`
	FileSize        int64  `db:"file_size" json:"file_size" yaml:"file_size"`
	Digest          string `db:"digest" json:"digest" yaml:"digest"`
	FileID          string `db:"file_id" json:"file_id,omitempty" yaml:"file_id,omitempty"`
	Stage           string `db:"stage" json:"stage" yaml:"stage"`
	TotalRows       int    `db:"total_rows" json:"total_rows" yaml:"total_rows"`
	TotalColumns    int    `db:"total_columns" json:"total_columns" yaml:"total_columns"`
	IssuesCount     int    `db:"issues_count" json:"issues_count" yaml:"issues_count"`
	Selected        int    `db:"selected" json:"selected" yaml:"selected"`
	RowsRemoved     int    `db:"rows_removed" json:"rows_removed" yaml:"rows_removed"`
	ValuesFixed     int    `db:"values_fixed" json:"values_fixed" yaml:"values_fixed"`
	ColumnsRenamed  int    `db:"columns_renamed" json:"columns_renamed" yaml:"columns_renamed"`
	CleanedFilename string `db:"cleaned_filename" json:"cleaned_filename,omitempty" yaml:"cleaned_filename,omitempty"`
	LastError       string `db:"last_error" json:"last_error,omitempty" yaml:"last_error,omitempty"`
	StartedAt       string `db:"started_at" json:"started_at" yaml:"started_at"`
	UpdatedAt       string `db:"updated_at" json:"updated_at" yaml:"updated_at"`
}

// Download is one saved export of a run.
type Download struct {
	ID        int64  `db:"id" json:"id" yaml:"id"`
	RunID     string `db:"run_id" json:"run_id" yaml:"run_id"`
	Format    string `db:"format" json:"format" yaml:"format"`
	Path      string `db:"path" json:"path" yaml:"path"`
	CreatedAt string `db:"created_at" json:"created_at" yaml:"created_at"`
}

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

type Journal struct {
	db *sqlx.DB
}

// Open opens (and creates if needed) the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func bootstrap(ctx context.Context, db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
  run_id           TEXT PRIMARY KEY,
  file_name        TEXT NOT NULL,
  file_size        INTEGER NOT NULL DEFAULT 0,
  digest           TEXT NOT NULL DEFAULT '',
  file_id          TEXT NOT NULL DEFAULT '',
  stage            TEXT NOT NULL,
  total_rows       INTEGER NOT NULL DEFAULT 0,
  total_columns    INTEGER NOT NULL DEFAULT 0,
  issues_count     INTEGER NOT NULL DEFAULT 0,
  selected         INTEGER NOT NULL DEFAULT 0,
  rows_removed     INTEGER NOT NULL DEFAULT 0,
  values_fixed     INTEGER NOT NULL DEFAULT 0,
  columns_renamed  INTEGER NOT NULL DEFAULT 0,
  cleaned_filename TEXT NOT NULL DEFAULT '',
  last_error       TEXT NOT NULL DEFAULT '',
  started_at       TEXT NOT NULL,
  updated_at       TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS downloads (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id     TEXT NOT NULL REFERENCES runs(run_id),
  format     TEXT NOT NULL,
  path       TEXT NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS downloads_run_id_idx ON downloads(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap journal: %w", err)
		}
	}
	return nil
}

type eventRow struct {
	RunID           string `db:"run_id"`
	FileName        string `db:"file_name"`
	FileSize        int64  `db:"file_size"`
	Digest          string `db:"digest"`
	FileID          string `db:"file_id"`
	Stage           string `db:"stage"`
	TotalRows       int    `db:"total_rows"`
	TotalColumns    int    `db:"total_columns"`
	IssuesCount     int    `db:"issues_count"`
	Selected        int    `db:"selected"`
	RowsRemoved     int    `db:"rows_removed"`
	ValuesFixed     int    `db:"values_fixed"`
	ColumnsRenamed  int    `db:"columns_renamed"`
	CleanedFilename string `db:"cleaned_filename"`
	Err             string `db:"err"`
	Format          string `db:"format"`
	Path            string `db:"path"`
	At              string `db:"at"`
}

const insertRun = `INSERT INTO runs (run_id, file_name, file_size, digest, stage, started_at, updated_at)
VALUES (:run_id, :file_name, :file_size, :digest, :stage, :at, :at)
ON CONFLICT(run_id) DO UPDATE SET stage = excluded.stage, updated_at = excluded.updated_at`

const updateUploaded = `UPDATE runs SET file_id = :file_id, total_rows = :total_rows,
total_columns = :total_columns, stage = :stage, last_error = '', updated_at = :at WHERE run_id = :run_id`

const updateAnalyzed = `UPDATE runs SET total_rows = :total_rows, total_columns = :total_columns,
issues_count = :issues_count, stage = :stage, last_error = '', updated_at = :at WHERE run_id = :run_id`

const updateCleaned = `UPDATE runs SET selected = :selected, rows_removed = :rows_removed,
values_fixed = :values_fixed, columns_renamed = :columns_renamed, cleaned_filename = :cleaned_filename,
stage = :stage, last_error = '', updated_at = :at WHERE run_id = :run_id`

const updateFailed = `UPDATE runs SET last_error = :err, stage = :stage, updated_at = :at WHERE run_id = :run_id`

const updateStage = `UPDATE runs SET stage = :stage, updated_at = :at WHERE run_id = :run_id`

const insertDownload = `INSERT INTO downloads (run_id, format, path, created_at)
VALUES (:run_id, :format, :path, :at)`

// Record applies one workflow event. It satisfies workflow.Recorder.
func (j *Journal) Record(ctx context.Context, ev workflow.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := eventRow{
		RunID:           ev.RunID,
		FileName:        ev.FileName,
		FileSize:        ev.FileSize,
		Digest:          ev.Digest,
		FileID:          ev.FileID,
		Stage:           ev.Stage.String(),
		TotalRows:       ev.TotalRows,
		TotalColumns:    ev.TotalColumns,
		IssuesCount:     ev.IssuesCount,
		Selected:        ev.Selected,
		RowsRemoved:     ev.Changes.RowsRemoved,
		ValuesFixed:     ev.Changes.ValuesFixed,
		ColumnsRenamed:  ev.Changes.ColumnsRenamed,
		CleanedFilename: ev.CleanedFilename,
		Err:             ev.Err,
		Format:          ev.Format,
		Path:            ev.Path,
		At:              at.UTC().Format(time.RFC3339Nano),
	}

	var stmts []string
	switch ev.Kind {
	case workflow.EventFileSelected:
		stmts = []string{insertRun}
	case workflow.EventUploaded:
		stmts = []string{updateUploaded}
	case workflow.EventAnalyzed:
		stmts = []string{updateAnalyzed}
	case workflow.EventCleaned:
		stmts = []string{updateCleaned}
	case workflow.EventDownloaded:
		stmts = []string{insertDownload, updateStage}
	case workflow.EventFailed:
		stmts = []string{updateFailed}
	case workflow.EventReset:
		row.Stage = "reset"
		stmts = []string{updateStage}
	default:
		return fmt.Errorf("journal: unknown event kind %q", ev.Kind)
	}

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range stmts {
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			return fmt.Errorf("journal %s: %w", ev.Kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []Run{}
	if err := j.db.SelectContext(ctx, &runs, `SELECT * FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (j *Journal) Get(ctx context.Context, runID string) (*Run, error) {
	var r Run
	err := j.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE run_id = ?`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// Downloads lists the exports saved for a run, oldest first.
func (j *Journal) Downloads(ctx context.Context, runID string) ([]Download, error) {
	out := []Download{}
	if err := j.db.SelectContext(ctx, &out, `SELECT * FROM downloads WHERE run_id = ? ORDER BY id`, runID); err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	return out, nil
}
