// Package persistence provides database storage implementations.
package persistence

import "time"

// RunModel is the runs table.
type RunModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	Encoder    string `gorm:"size:64;index"`
	Store      string `gorm:"size:64"`
	Mode       string `gorm:"size:16"`
	Corpus     string
	StartedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time
	Clips      int
	Skipped    int
	Failed     int
}

// TableName implements gorm's tabler.
func (RunModel) TableName() string { return "runs" }

// ClipModel is the run_clips table.
type ClipModel struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"size:36;index:idx_run_clip"`
	ClipID       int64  `gorm:"index:idx_run_clip"`
	Video        string `gorm:"index"`
	StartFrame   int
	EndFrame     int
	Frames       int
	Status       string `gorm:"size:16"`
	Error        string
	EncodeMillis int64
	UploadMillis int64
	CreatedAt    time.Time
}

// TableName implements gorm's tabler.
func (ClipModel) TableName() string { return "run_clips" }
