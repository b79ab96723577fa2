package store

import (
	"fmt"
	"strconv"
	"strings"
)

// collectionPrefix is prepended to the model name to form collection names.
const collectionPrefix = "ucf"

// CollectionName derives the collection for a model.
func CollectionName(modelName string) string {
	return collectionPrefix + modelName
}

// ArtifactName returns the flat-file name for one vector of a clip. frame is
// the position within a list embedding, or -1 for a single embedding.
func ArtifactName(id int64, frame int, video string, start, end int) string {
	if frame < 0 {
		return fmt.Sprintf("%06d_%s_%d-%d.npy", id, video, start, end)
	}
	return fmt.Sprintf("%06d-%d_%s_%d-%d.npy", id, frame, video, start, end)
}

// ClipFileName is the name of a clip saved alongside an upload.
func ClipFileName(video string, start, end int) string {
	return fmt.Sprintf("%s_%d-%d.npy", video, start, end)
}

// Artifact is a parsed artifact name.
type Artifact struct {
	ID         int64
	Frame      int
	Video      string
	StartFrame int
	EndFrame   int
}

// ParseArtifactName reverses ArtifactName. Video names may contain underscores.
func ParseArtifactName(name string) (Artifact, bool) {
	base, ok := strings.CutSuffix(name, ".npy")
	if !ok {
		return Artifact{}, false
	}
	head, rest, ok := strings.Cut(base, "_")
	if !ok {
		return Artifact{}, false
	}
	sep := strings.LastIndex(rest, "_")
	if sep <= 0 {
		return Artifact{}, false
	}
	video, span := rest[:sep], rest[sep+1:]

	a := Artifact{Video: video, Frame: -1}
	idPart, framePart, hasFrame := strings.Cut(head, "-")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Artifact{}, false
	}
	a.ID = id
	if hasFrame {
		if a.Frame, err = strconv.Atoi(framePart); err != nil {
			return Artifact{}, false
		}
	}

	startPart, endPart, ok := strings.Cut(span, "-")
	if !ok {
		return Artifact{}, false
	}
	if a.StartFrame, err = strconv.Atoi(startPart); err != nil {
		return Artifact{}, false
	}
	if a.EndFrame, err = strconv.Atoi(endPart); err != nil {
		return Artifact{}, false
	}
	return a, true
}
