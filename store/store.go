package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/LdDl/sot-go/evaluation"
	"github.com/LdDl/sot-go/sot"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Run is a persisted tracking run of one (sub-)sequence
type Run struct {
	ID         uuid.UUID
	Video      string
	StartFrame int
	CreatedAt  time.Time
	Metrics    evaluation.Metrics
	Boxes      []sot.Rectangle
}

// Store keeps runs and their boxes in SQLite
type Store struct {
	*sql.DB
}

// Open opens (or creates) SQLite database. Use ":memory:" for a transient store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open database '%s'", path)
	}
	// In-memory databases are per connection
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			video             TEXT NOT NULL,
			start_frame       BIGINT NOT NULL,
			frames            BIGINT NOT NULL,
			precision         DOUBLE,
			precision_auc     DOUBLE,
			iou               DOUBLE,
			fps               DOUBLE,
			created_at        BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS boxes (
			run_id            TEXT NOT NULL,
			frame             BIGINT NOT NULL,
			x                 DOUBLE,
			y                 DOUBLE,
			width             DOUBLE,
			height            DOUBLE,
			PRIMARY KEY (run_id, frame),
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't create tables")
	}
	return &Store{db}, nil
}

// SaveRun inserts run with all of its boxes in one transaction
func (store *Store) SaveRun(ctx context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	tx, err := store.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Can't begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
			run_id, video, start_frame, frames, precision, precision_auc, iou, fps, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Video, run.StartFrame, len(run.Boxes),
		run.Metrics.Precision, run.Metrics.PrecisionAUC, run.Metrics.IoU, run.Metrics.FramesPerSecond,
		run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrapf(err, "Can't insert run %s", run.ID)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO boxes (run_id, frame, x, y, width, height) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "Can't prepare boxes insert")
	}
	defer stmt.Close()
	for i, bbox := range run.Boxes {
		if _, err = stmt.ExecContext(ctx, run.ID.String(), i, bbox.X, bbox.Y, bbox.Width, bbox.Height); err != nil {
			return errors.Wrapf(err, "Can't insert box of frame %d", i)
		}
	}
	return errors.Wrap(tx.Commit(), "Can't commit run")
}

// Boxes returns boxes of the run ordered by frame
func (store *Store) Boxes(ctx context.Context, runID uuid.UUID) ([]sot.Rectangle, error) {
	rows, err := store.QueryContext(ctx, `SELECT x, y, width, height FROM boxes WHERE run_id = ? ORDER BY frame`, runID.String())
	if err != nil {
		return nil, errors.Wrapf(err, "Can't query boxes of run %s", runID)
	}
	defer rows.Close()
	boxes := []sot.Rectangle{}
	for rows.Next() {
		var bbox sot.Rectangle
		if err = rows.Scan(&bbox.X, &bbox.Y, &bbox.Width, &bbox.Height); err != nil {
			return nil, errors.Wrap(err, "Can't scan box")
		}
		boxes = append(boxes, bbox)
	}
	return boxes, errors.Wrap(rows.Err(), "Can't iterate boxes")
}

// Runs returns all runs without boxes, oldest first
func (store *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := store.QueryContext(ctx, `
		SELECT run_id, video, start_frame, frames, precision, precision_auc, iou, fps, created_at
		FROM runs ORDER BY created_at, run_id`)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query runs")
	}
	defer rows.Close()
	runs := []Run{}
	for rows.Next() {
		var (
			run       Run
			id        string
			createdAt int64
		)
		err = rows.Scan(&id, &run.Video, &run.StartFrame, &run.Metrics.Frames,
			&run.Metrics.Precision, &run.Metrics.PrecisionAUC, &run.Metrics.IoU, &run.Metrics.FramesPerSecond, &createdAt)
		if err != nil {
			return nil, errors.Wrap(err, "Can't scan run")
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "Can't parse run id '%s'", id)
		}
		run.CreatedAt = time.UnixMilli(createdAt)
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "Can't iterate runs")
}
