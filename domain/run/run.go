// Package run records pipeline runs and the outcome of every clip they process.
package run

import (
	"context"
	"time"
)

// Status is the outcome of one clip.
type Status string

// Status values.
const (
	StatusStored  Status = "stored"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Mode is how a run segments videos into clips.
type Mode string

// Mode values.
const (
	ModeAnnotated Mode = "annotated"
	ModeWindowed  Mode = "windowed"
)

// Run summarises one pipeline invocation.
type Run struct {
	ID         string
	Encoder    string
	Store      string
	Mode       Mode
	Corpus     string
	StartedAt  time.Time
	FinishedAt time.Time
	Clips      int
	Skipped    int
	Failed     int
}

// Clip is the outcome of one clip within a run.
type Clip struct {
	RunID      string
	ClipID     int64
	Video      string
	StartFrame int
	EndFrame   int
	Frames     int
	Status     Status
	Error      string
	EncodeTime time.Duration
	UploadTime time.Duration
}

// Ledger persists runs and clip outcomes.
type Ledger interface {
	Start(ctx context.Context, r Run) error
	Record(ctx context.Context, c Clip) error
	Finish(ctx context.Context, r Run) error
	Runs(ctx context.Context, limit int) ([]Run, error)
	Clips(ctx context.Context, runID string) ([]Clip, error)
}

// NopLedger discards everything.
type NopLedger struct{}

// Start implements Ledger.
func (NopLedger) Start(context.Context, Run) error { return nil }

// Record implements Ledger.
func (NopLedger) Record(context.Context, Clip) error { return nil }

// Finish implements Ledger.
func (NopLedger) Finish(context.Context, Run) error { return nil }

// Runs implements Ledger.
func (NopLedger) Runs(context.Context, int) ([]Run, error) { return nil, nil }

// Clips implements Ledger.
func (NopLedger) Clips(context.Context, string) ([]Clip, error) { return nil, nil }
