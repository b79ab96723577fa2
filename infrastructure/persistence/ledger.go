package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/helixml/vidembed/domain/run"
	"github.com/helixml/vidembed/internal/database"
)

// ErrRunFinished is returned when a finished run is finished again.
var ErrRunFinished = errors.New("run already finished")

// Ledger implements run.Ledger using GORM.
type Ledger struct {
	db    database.Database
	runs  database.Repository[run.Run, RunModel]
	clips database.Repository[run.Clip, ClipModel]
}

// NewLedger migrates the ledger tables and returns a Ledger.
func NewLedger(ctx context.Context, db database.Database) (*Ledger, error) {
	if err := db.Migrate(ctx, &RunModel{}, &ClipModel{}); err != nil {
		return nil, err
	}
	return &Ledger{
		db:    db,
		runs:  database.NewRepository[run.Run, RunModel](db, RunMapper{}, "run"),
		clips: database.NewRepository[run.Clip, ClipModel](db, ClipMapper{}, "clip"),
	}, nil
}

// Start records a new run.
func (l *Ledger) Start(ctx context.Context, r run.Run) error {
	if r.ID == "" {
		return errors.New("start run: empty id")
	}
	r.FinishedAt = time.Time{}
	if err := l.runs.Create(ctx, r); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// Record stores one clip outcome.
func (l *Ledger) Record(ctx context.Context, c run.Clip) error {
	if err := l.clips.Create(ctx, c); err != nil {
		return fmt.Errorf("record clip %d: %w", c.ClipID, err)
	}
	return nil
}

// Finish stores a run's totals and completion time. A run finishes once.
func (l *Ledger) Finish(ctx context.Context, r run.Run) error {
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	byID := database.NewQuery().Equal("id", r.ID)

	err := database.WithTransaction(ctx, l.db, func(tx *gorm.DB) error {
		runs := l.runs.WithTx(tx)
		existing, err := runs.FindOne(ctx, byID)
		if err != nil {
			return err
		}
		if !existing.FinishedAt.IsZero() {
			return fmt.Errorf("%w: %s", ErrRunFinished, r.ID)
		}
		_, err = runs.Update(ctx, byID, map[string]any{
			"finished_at": finished,
			"clips":       r.Clips,
			"skipped":     r.Skipped,
			"failed":      r.Failed,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs first. A limit of zero returns all runs.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]run.Run, error) {
	runs, err := l.runs.Find(ctx, database.NewQuery().OrderDesc("started_at").Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Clips returns a run's clips in id order.
func (l *Ledger) Clips(ctx context.Context, runID string) ([]run.Clip, error) {
	clips, err := l.clips.Find(ctx, database.NewQuery().Equal("run_id", runID).OrderAsc("clip_id").OrderAsc("id"))
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	return clips, nil
}

var _ run.Ledger = (*Ledger)(nil)
