// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/run"
	"github.com/helixml/vidembed/domain/store"
	"github.com/helixml/vidembed/domain/video"
	infrastore "github.com/helixml/vidembed/infrastructure/store"
	"github.com/helixml/vidembed/internal/metrics"
	"github.com/helixml/vidembed/internal/progress"
)

// DefaultClipSeconds is the fixed-window clip duration.
const DefaultClipSeconds = 14.0

// videoExtensions are the container formats the pipeline will open.
var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mkv": true, ".mov": true,
	".webm": true, ".mpg": true, ".mpeg": true, ".m4v": true,
}

// Annotations supplies the annotated time ranges of each video.
type Annotations interface {
	For(videoName string) []video.Annotation
	Len() int
}

// ProgressFactory creates a reporter for a run over total clips.
// A non-positive total means the count is not known up front.
type ProgressFactory func(total int, description string) progress.Reporter

// Summary reports the outcome of one run.
type Summary struct {
	RunID      string
	Clips      int
	Skipped    int
	Failed     int
	EncodeTime time.Duration
	UploadTime time.Duration
}

// LogAttrs returns the summary as slog attributes.
func (s Summary) LogAttrs() []any {
	return []any{
		"run_id", s.RunID,
		"clips", s.Clips,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"encode_time", s.EncodeTime,
		"upload_time", s.UploadTime,
	}
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSaveDir writes every clip embedding as .npy into dir.
func WithSaveDir(dir string) PipelineOption {
	return func(p *Pipeline) { p.saveDir = dir }
}

// WithLedger records runs and clip outcomes.
func WithLedger(l run.Ledger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.ledger = l
		}
	}
}

// WithMetrics records clip counts and timings.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithProgress sets the progress reporter factory.
func WithProgress(f ProgressFactory) PipelineOption {
	return func(p *Pipeline) {
		if f != nil {
			p.progress = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClipSeconds sets the fixed-window clip duration.
func WithClipSeconds(s float64) PipelineOption {
	return func(p *Pipeline) {
		if s > 0 {
			p.clipSeconds = s
		}
	}
}

// WithWindowStride samples every n-th frame in fixed-window mode.
func WithWindowStride(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.windowStride = n
		}
	}
}

// WithStoreName labels ledger runs with the store identifier.
func WithStoreName(name string) PipelineOption {
	return func(p *Pipeline) { p.storeName = name }
}

// Pipeline walks a video corpus, embeds each clip and uploads it.
// Clips are processed one at a time; ids start at zero for every run and
// increase by one per clip.
type Pipeline struct {
	source    video.Source
	generator embedding.Generator
	handler   store.Handler

	saveDir      string
	ledger       run.Ledger
	metrics      *metrics.Metrics
	progress     ProgressFactory
	logger       *slog.Logger
	clipSeconds  float64
	windowStride int
	storeName    string
}

// NewPipeline creates a Pipeline. The handler must already be open.
func NewPipeline(source video.Source, generator embedding.Generator, handler store.Handler, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source:       source,
		generator:    generator,
		handler:      handler,
		ledger:       run.NopLedger{},
		progress:     func(int, string) progress.Reporter { return progress.Nop{} },
		logger:       slog.Default(),
		clipSeconds:  DefaultClipSeconds,
		windowStride: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// runState carries the counters of one run.
type runState struct {
	summary  Summary
	nextID   int64
	reporter progress.Reporter
	logger   *slog.Logger
}

// clipJob is one clip ready to be embedded.
type clipJob struct {
	rng      video.FrameRange
	metadata embedding.Metadata
}

// RunAnnotated embeds every annotated clip of the videos under corpusDir.
// Only leaf directories are walked. Videos are matched to annotations by
// file stem.
func (p *Pipeline) RunAnnotated(ctx context.Context, corpusDir string, annotations Annotations) (Summary, error) {
	paths, err := leafVideos(corpusDir)
	if err != nil {
		return Summary{}, err
	}

	state, err := p.begin(ctx, run.ModeAnnotated, corpusDir, annotations.Len(), "annotated clips")
	if err != nil {
		return Summary{}, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return p.end(ctx, state, err)
		}
		anns := annotations.For(filepath.Base(path))
		if len(anns) == 0 {
			state.logger.Debug("no annotations for video", "path", path)
			continue
		}
		if err := p.annotatedVideo(ctx, state, path, anns); err != nil {
			return p.end(ctx, state, err)
		}
	}
	return p.end(ctx, state, nil)
}

// RunWindowed embeds fixed-duration windows of every video directly in corpusDir.
func (p *Pipeline) RunWindowed(ctx context.Context, corpusDir string) (Summary, error) {
	paths, err := dirVideos(corpusDir)
	if err != nil {
		return Summary{}, err
	}

	state, err := p.begin(ctx, run.ModeWindowed, corpusDir, 0, "windows")
	if err != nil {
		return Summary{}, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return p.end(ctx, state, err)
		}
		if err := p.windowedVideo(ctx, state, path); err != nil {
			return p.end(ctx, state, err)
		}
	}
	return p.end(ctx, state, nil)
}

func (p *Pipeline) begin(ctx context.Context, mode run.Mode, corpusDir string, total int, description string) (*runState, error) {
	if p.saveDir != "" {
		if err := os.MkdirAll(p.saveDir, 0o755); err != nil {
			return nil, fmt.Errorf("create save directory: %w", err)
		}
	}

	id := uuid.NewString()
	err := p.ledger.Start(ctx, run.Run{
		ID:        id,
		Encoder:   p.generator.Params().ModelName,
		Store:     p.storeName,
		Mode:      mode,
		Corpus:    corpusDir,
		StartedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	logger := p.logger.With("run_id", id)
	logger.Info("run started", "mode", string(mode), "corpus", corpusDir, "encoder", p.generator.Params().String())
	return &runState{
		summary:  Summary{RunID: id},
		reporter: p.progress(total, description),
		logger:   logger,
	}, nil
}

func (p *Pipeline) end(ctx context.Context, state *runState, runErr error) (Summary, error) {
	state.reporter.Finish()
	s := state.summary

	// The ledger outlives a cancelled run context.
	finishCtx := context.WithoutCancel(ctx)
	err := p.ledger.Finish(finishCtx, run.Run{
		ID:         s.RunID,
		FinishedAt: time.Now(),
		Clips:      s.Clips,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
	})
	if err != nil {
		state.logger.Warn("failed to finish run in ledger", "error", err)
	}

	if runErr != nil {
		state.logger.Error("run aborted", append(s.LogAttrs(), "error", runErr)...)
		return s, runErr
	}
	state.logger.Info("run finished", s.LogAttrs()...)
	return s, nil
}

func (p *Pipeline) annotatedVideo(ctx context.Context, state *runState, path string, anns []video.Annotation) error {
	name := filepath.Base(path)
	logger := state.logger.With("video", name)

	v, err := p.source.Open(ctx, path)
	if err != nil {
		logger.Warn("skipping unreadable video", "clips", len(anns), "error", err)
		p.skip(state, len(anns))
		return nil
	}
	defer closeVideo(v, logger)

	info := v.Info()
	jobs := make([]clipJob, 0, len(anns))
	for _, a := range anns {
		rng := clampRange(a.Frames(info), info)
		jobs = append(jobs, clipJob{
			rng: rng,
			metadata: embedding.Metadata{
				Video:      annotationStem(name),
				StartFrame: rng.Start,
				EndFrame:   rng.End,
				Sentence:   a.Sentence,
				Dataset:    a.Split,
				ClassName:  a.ClassName,
			},
		})
	}
	for _, job := range jobs {
		if err := p.processClip(ctx, state, v, job, logger); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) windowedVideo(ctx context.Context, state *runState, path string) error {
	name := filepath.Base(path)
	logger := state.logger.With("video", name)

	v, err := p.source.Open(ctx, path)
	if err != nil {
		logger.Warn("skipping unreadable video", "error", err)
		p.skip(state, 1)
		return nil
	}
	defer closeVideo(v, logger)

	info := v.Info()
	window := int(p.clipSeconds * info.FPS)
	if window < 1 {
		window = 1
	}

	for start := 0; info.FrameCount <= 0 || start < info.FrameCount; start += window {
		end := start + window
		if info.FrameCount > 0 {
			end = min(end, info.FrameCount)
		}
		job := clipJob{
			rng:      video.FrameRange{Start: start, End: end, Stride: p.windowStride},
			metadata: embedding.Metadata{Video: annotationStem(name), StartFrame: start, EndFrame: end},
		}
		if info.FrameCount <= 0 {
			// Unknown length: stop at the first window past the end of the stream.
			frames, err := video.ReadRange(ctx, v, job.rng)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("stopped reading video", "start_frame", start, "error", err)
				return nil
			}
			if len(frames) == 0 {
				return nil
			}
			if err := p.processFrames(ctx, state, job, frames, logger); err != nil {
				return err
			}
			continue
		}
		if err := p.processClip(ctx, state, v, job, logger); err != nil {
			return err
		}
	}
	return nil
}

// processClip reads a clip's frames and hands them to processFrames. Per-clip
// failures are logged and counted; only cancellation and contract violations
// are returned.
func (p *Pipeline) processClip(ctx context.Context, state *runState, v video.Video, job clipJob, logger *slog.Logger) error {
	frames, err := video.ReadRange(ctx, v, job.rng)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id := p.assignID(state)
		p.fail(ctx, state, id, job, 0, fmt.Errorf("read frames: %w", err), 0, 0, logger)
		return nil
	}
	return p.processFrames(ctx, state, job, frames, logger)
}

func (p *Pipeline) processFrames(ctx context.Context, state *runState, job clipJob, frames []video.Frame, logger *slog.Logger) error {
	id := p.assignID(state)
	md := job.metadata
	clipLogger := logger.With("clip_id", id, "start_frame", md.StartFrame, "end_frame", md.EndFrame)

	if len(frames) == 0 {
		clipLogger.Warn("skipping empty clip")
		p.record(ctx, state, id, job, 0, run.StatusSkipped, nil, 0, 0)
		state.summary.Skipped++
		p.metrics.Clip(metrics.StatusSkipped)
		state.reporter.Add(1)
		return nil
	}

	start := time.Now()
	emb, err := p.generator.Embed(ctx, frames)
	encodeTime := time.Since(start)
	p.metrics.Frames(len(frames))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.fail(ctx, state, id, job, len(frames), fmt.Errorf("embed: %w", err), encodeTime, 0, clipLogger)
		return nil
	}
	if err := p.generator.Params().Check(emb); err != nil {
		return fmt.Errorf("clip %d: %w", id, err)
	}
	state.summary.EncodeTime += encodeTime
	p.metrics.Encode(encodeTime)

	var saveErr error
	if p.saveDir != "" {
		path := filepath.Join(p.saveDir, infrastore.ClipFileName(md.Video, md.StartFrame, md.EndFrame))
		if err := infrastore.WriteNPYMatrix(path, emb.Vectors()); err != nil {
			saveErr = fmt.Errorf("save %s: %w", path, err)
		}
	}

	start = time.Now()
	uploadErr := p.handler.Upload(ctx, id, emb, md)
	uploadTime := time.Since(start)
	state.summary.UploadTime += uploadTime
	p.metrics.Upload(uploadTime)
	if uploadErr != nil {
		if errors.Is(uploadErr, embedding.ErrDimensionMismatch) {
			return fmt.Errorf("clip %d: %w", id, uploadErr)
		}
		uploadErr = fmt.Errorf("upload: %w", uploadErr)
	}

	if err := errors.Join(saveErr, uploadErr); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.fail(ctx, state, id, job, len(frames), err, encodeTime, uploadTime, clipLogger)
		return nil
	}

	clipLogger.Debug("clip stored", "frames", len(frames), "encode", encodeTime, "upload", uploadTime)
	p.record(ctx, state, id, job, len(frames), run.StatusStored, nil, encodeTime, uploadTime)
	state.summary.Clips++
	p.metrics.Clip(metrics.StatusStored)
	state.reporter.Add(1)
	return nil
}

func (p *Pipeline) assignID(state *runState) int64 {
	id := state.nextID
	state.nextID++
	return id
}

func (p *Pipeline) skip(state *runState, clips int) {
	state.summary.Skipped += clips
	for range clips {
		p.metrics.Clip(metrics.StatusSkipped)
	}
	state.reporter.Add(clips)
}

func (p *Pipeline) fail(ctx context.Context, state *runState, id int64, job clipJob, frames int, err error, encodeTime, uploadTime time.Duration, logger *slog.Logger) {
	logger.Error("clip failed", "error", err)
	p.record(ctx, state, id, job, frames, run.StatusFailed, err, encodeTime, uploadTime)
	state.summary.Failed++
	p.metrics.Clip(metrics.StatusFailed)
	state.reporter.Add(1)
}

func (p *Pipeline) record(ctx context.Context, state *runState, id int64, job clipJob, frames int, status run.Status, clipErr error, encodeTime, uploadTime time.Duration) {
	c := run.Clip{
		RunID:      state.summary.RunID,
		ClipID:     id,
		Video:      job.metadata.Video,
		StartFrame: job.rng.Start,
		EndFrame:   job.rng.End,
		Frames:     frames,
		Status:     status,
		EncodeTime: encodeTime,
		UploadTime: uploadTime,
	}
	if clipErr != nil {
		c.Error = clipErr.Error()
	}
	if err := p.ledger.Record(context.WithoutCancel(ctx), c); err != nil {
		state.logger.Warn("failed to record clip", "clip_id", id, "error", err)
	}
}

// clampRange bounds an annotated range by the video's frame count.
func clampRange(r video.FrameRange, info video.Info) video.FrameRange {
	if info.FrameCount > 0 && r.End > info.FrameCount {
		r.End = info.FrameCount
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

func closeVideo(v video.Video, logger *slog.Logger) {
	if err := v.Close(); err != nil {
		logger.Warn("failed to close video", "error", err)
	}
}

// annotationStem is the video identifier stored in metadata.
func annotationStem(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

func isVideo(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// leafVideos lists video files in directories that have no subdirectories.
func leafVideos(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		var files []string
		for _, e := range entries {
			if e.IsDir() {
				return nil
			}
			if isVideo(e.Name()) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		paths = append(paths, files...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// dirVideos lists video files directly inside dir.
func dirVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isVideo(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
