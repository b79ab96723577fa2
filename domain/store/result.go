package store

// Result is a single search hit.
type Result struct {
	id       int64
	score    float64
	metadata map[string]any
}

// NewResult creates a Result.
func NewResult(id int64, score float64, metadata map[string]any) Result {
	return Result{id: id, score: score, metadata: metadata}
}

// ID returns the clip id.
func (r Result) ID() int64 { return r.id }

// Score returns the similarity score. Higher is closer.
func (r Result) Score() float64 { return r.score }

// Metadata returns the stored metadata.
func (r Result) Metadata() map[string]any { return r.metadata }

// Video returns the video name from the metadata, if present.
func (r Result) Video() string {
	v, _ := r.metadata["video"].(string)
	return v
}
