package persistence

import (
	"time"

	"github.com/helixml/vidembed/domain/run"
)

// RunMapper maps between run.Run and RunModel.
type RunMapper struct{}

// ToDomain converts a RunModel to a run.Run.
func (RunMapper) ToDomain(m RunModel) run.Run {
	r := run.Run{
		ID:        m.ID,
		Encoder:   m.Encoder,
		Store:     m.Store,
		Mode:      run.Mode(m.Mode),
		Corpus:    m.Corpus,
		StartedAt: m.StartedAt,
		Clips:     m.Clips,
		Skipped:   m.Skipped,
		Failed:    m.Failed,
	}
	if m.FinishedAt != nil {
		r.FinishedAt = *m.FinishedAt
	}
	return r
}

// ToModel converts a run.Run to a RunModel. A zero FinishedAt is stored as NULL.
func (RunMapper) ToModel(r run.Run) RunModel {
	m := RunModel{
		ID:        r.ID,
		Encoder:   r.Encoder,
		Store:     r.Store,
		Mode:      string(r.Mode),
		Corpus:    r.Corpus,
		StartedAt: r.StartedAt,
		Clips:     r.Clips,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		m.FinishedAt = &finished
	}
	return m
}

// ClipMapper maps between run.Clip and ClipModel. Durations are kept as milliseconds.
type ClipMapper struct{}

// ToDomain converts a ClipModel to a run.Clip.
func (ClipMapper) ToDomain(m ClipModel) run.Clip {
	return run.Clip{
		RunID:      m.RunID,
		ClipID:     m.ClipID,
		Video:      m.Video,
		StartFrame: m.StartFrame,
		EndFrame:   m.EndFrame,
		Frames:     m.Frames,
		Status:     run.Status(m.Status),
		Error:      m.Error,
		EncodeTime: time.Duration(m.EncodeMillis) * time.Millisecond,
		UploadTime: time.Duration(m.UploadMillis) * time.Millisecond,
	}
}

// ToModel converts a run.Clip to a ClipModel.
func (ClipMapper) ToModel(c run.Clip) ClipModel {
	return ClipModel{
		RunID:        c.RunID,
		ClipID:       c.ClipID,
		Video:        c.Video,
		StartFrame:   c.StartFrame,
		EndFrame:     c.EndFrame,
		Frames:       c.Frames,
		Status:       string(c.Status),
		Error:        c.Error,
		EncodeMillis: c.EncodeTime.Milliseconds(),
		UploadMillis: c.UploadTime.Milliseconds(),
	}
}
