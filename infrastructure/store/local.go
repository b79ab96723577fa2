package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

// Local writes each vector to its own .npy file in a directory.
type Local struct {
	dir    string
	params embedding.EncoderParams
	logger *slog.Logger
	open   bool
}

// NewLocal creates a Local store rooted at dir. The directory is created on Open.
func NewLocal(dir string, params embedding.EncoderParams, logger *slog.Logger) (*Local, error) {
	if dir == "" {
		return nil, embedding.Configurationf("local store: directory is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{dir: dir, params: params, logger: logger}, nil
}

// Dir returns the output directory.
func (l *Local) Dir() string { return l.dir }

// Open implements store.Handler.
func (l *Local) Open(_ context.Context) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return embedding.Unavailable("local store "+l.dir, err)
	}
	l.open = true
	return nil
}

// Upload implements store.Handler. Re-uploading the same id and metadata
// overwrites the previous files.
func (l *Local) Upload(_ context.Context, id int64, emb embedding.Embedding, md embedding.Metadata) error {
	if !l.open {
		return domainstore.ErrNotOpen
	}
	if err := l.params.Check(emb); err != nil {
		return err
	}

	for i, v := range emb.Vectors() {
		frame := -1
		if emb.IsList() {
			frame = i
		}
		name := ArtifactName(id, frame, md.Video, md.StartFrame, md.EndFrame)
		if err := WriteNPY(filepath.Join(l.dir, name), v); err != nil {
			return err
		}
	}
	return nil
}

// Close implements store.Handler.
func (l *Local) Close() error {
	l.open = false
	return nil
}

// Search ranks every artifact in the directory by cosine similarity.
func (l *Local) Search(_ context.Context, query embedding.Vector, topK int) ([]domainstore.Result, error) {
	if len(query) != l.params.Dim() {
		return nil, fmt.Errorf("%w: query width %d, store width %d", embedding.ErrDimensionMismatch, len(query), l.params.Dim())
	}
	artifacts, err := l.artifacts()
	if err != nil {
		return nil, err
	}

	vectors := make([]storedVector, 0, len(artifacts))
	for _, a := range artifacts {
		v, err := ReadNPY(filepath.Join(l.dir, a.name))
		if err != nil {
			l.logger.Warn("skipping unreadable artifact", slog.String("file", a.name), slog.String("error", err.Error()))
			continue
		}
		vectors = append(vectors, storedVector{
			vector: v,
			id:     a.ID,
			meta: embedding.Metadata{
				Video:      a.Video,
				StartFrame: a.StartFrame,
				EndFrame:   a.EndFrame,
			}.Map(),
		})
	}
	return topKSimilar(query, vectors, topK), nil
}

// Count returns the number of artifacts in the directory.
func (l *Local) Count(_ context.Context) (int, error) {
	artifacts, err := l.artifacts()
	if err != nil {
		return 0, err
	}
	return len(artifacts), nil
}

type namedArtifact struct {
	Artifact
	name string
}

func (l *Local) artifacts() ([]namedArtifact, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.dir, err)
	}
	var out []namedArtifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		a, ok := ParseArtifactName(e.Name())
		if !ok {
			continue
		}
		out = append(out, namedArtifact{Artifact: a, name: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

var (
	_ domainstore.Handler  = (*Local)(nil)
	_ domainstore.Searcher = (*Local)(nil)
	_ domainstore.Lister   = (*Local)(nil)
)
