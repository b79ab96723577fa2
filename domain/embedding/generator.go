package embedding

import (
	"context"

	"github.com/helixml/vidembed/domain/video"
)

// Generator turns an ordered sequence of frames into an embedding.
// Implementations keep no state between calls beyond a loaded model.
type Generator interface {
	// Embed returns one vector for the clip, or one per frame when Params().List is set.
	Embed(ctx context.Context, frames []video.Frame) (Embedding, error)

	// Params describes what Embed returns.
	Params() EncoderParams

	// Close releases the model.
	Close() error
}

// TextEncoder embeds free text into the same space as a frame model.
type TextEncoder interface {
	EmbedTexts(ctx context.Context, texts []string) ([]Vector, error)
}
