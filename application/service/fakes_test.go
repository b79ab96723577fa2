package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/run"
	"github.com/helixml/vidembed/domain/video"
	"github.com/helixml/vidembed/internal/progress"
)

var errBroken = errors.New("moov atom not found")

// fakeSource serves in-memory videos keyed by file name.
type fakeSource struct {
	videos map[string]video.Info
	opened []string
	closed int
}

func (s *fakeSource) Open(_ context.Context, path string) (video.Video, error) {
	name := filepath.Base(path)
	s.opened = append(s.opened, name)
	info, ok := s.videos[name]
	if !ok {
		return nil, errBroken
	}
	return &fakeVideo{info: info, source: s}, nil
}

type fakeVideo struct {
	info   video.Info
	source *fakeSource
}

func (v *fakeVideo) Info() video.Info { return v.info }

func (v *fakeVideo) Frames(_ context.Context, r video.FrameRange) (video.FrameReader, error) {
	end := r.End
	if !r.Bounded() || (v.info.FrameCount > 0 && end > v.info.FrameCount) {
		end = v.info.FrameCount
	}
	return &fakeReader{next: r.Start, end: end, stride: r.Stride}, nil
}

func (v *fakeVideo) Close() error {
	v.source.closed++
	return nil
}

type fakeReader struct {
	next, end, stride int
}

func (r *fakeReader) Next() (video.Frame, error) {
	if r.next >= r.end {
		return video.Frame{}, io.EOF
	}
	f, err := video.NewFrame(r.next, 2, 1, make([]byte, 6))
	r.next += r.stride
	return f, err
}

func (r *fakeReader) Close() error { return nil }

// fakeAnnotations maps video stems to annotations.
type fakeAnnotations map[string][]video.Annotation

func (a fakeAnnotations) For(name string) []video.Annotation {
	stem := name
	if ext := filepath.Ext(name); ext != "" {
		stem = name[:len(name)-len(ext)]
	}
	return a[stem]
}

func (a fakeAnnotations) Len() int {
	n := 0
	for _, anns := range a {
		n += len(anns)
	}
	return n
}

// upload is one call seen by recordingHandler.
type upload struct {
	id       int64
	emb      embedding.Embedding
	metadata embedding.Metadata
}

type recordingHandler struct {
	mu      sync.Mutex
	uploads []upload
	err     error
}

func (h *recordingHandler) Open(context.Context) error { return nil }

func (h *recordingHandler) Upload(_ context.Context, id int64, emb embedding.Embedding, md embedding.Metadata) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads = append(h.uploads, upload{id: id, emb: emb, metadata: md})
	return h.err
}

func (h *recordingHandler) Close() error { return nil }

// countingGenerator returns one vector per frame, or err.
type countingGenerator struct {
	params embedding.EncoderParams
	calls  int
	err    error
	width  int
}

func newCountingGenerator() *countingGenerator {
	return &countingGenerator{params: embedding.NewEncoderParams("counting", 2, true), width: 2}
}

func (g *countingGenerator) Embed(_ context.Context, frames []video.Frame) (embedding.Embedding, error) {
	g.calls++
	if g.err != nil {
		return embedding.Embedding{}, g.err
	}
	vectors := make([]embedding.Vector, len(frames))
	for i, f := range frames {
		v := make(embedding.Vector, g.width)
		v[0] = float32(f.Index())
		vectors[i] = v
	}
	return embedding.NewList(vectors), nil
}

func (g *countingGenerator) Params() embedding.EncoderParams { return g.params }

func (g *countingGenerator) Close() error { return nil }

type memoryLedger struct {
	started  []run.Run
	finished []run.Run
	clips    []run.Clip
}

func (l *memoryLedger) Start(_ context.Context, r run.Run) error {
	l.started = append(l.started, r)
	return nil
}

func (l *memoryLedger) Record(_ context.Context, c run.Clip) error {
	l.clips = append(l.clips, c)
	return nil
}

func (l *memoryLedger) Finish(_ context.Context, r run.Run) error {
	l.finished = append(l.finished, r)
	return nil
}

func (l *memoryLedger) Runs(context.Context, int) ([]run.Run, error) { return l.finished, nil }

func (l *memoryLedger) Clips(context.Context, string) ([]run.Clip, error) { return l.clips, nil }

type recordingProgress struct {
	total    int
	ticks    int
	finished bool
}

func (p *recordingProgress) Add(n int) { p.ticks += n }

func (p *recordingProgress) Finish() { p.finished = true }

func (p *recordingProgress) factory() ProgressFactory {
	return func(total int, _ string) progress.Reporter {
		p.total = total
		return p
	}
}

// touch creates empty files under dir.
func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}
