package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "000000_Abuse001_x264_0-448.npy", ArtifactName(0, -1, "Abuse001_x264", 0, 448))
	assert.Equal(t, "000012-3_v_5-9.npy", ArtifactName(12, 3, "v", 5, 9))
	assert.Equal(t, "1234567_v_0-1.npy", ArtifactName(1234567, -1, "v", 0, 1))
}

func TestParseArtifactName(t *testing.T) {
	a, ok := ParseArtifactName("000012-3_Normal_Videos_015_x264_5-9.npy")
	assert.True(t, ok)
	assert.Equal(t, Artifact{ID: 12, Frame: 3, Video: "Normal_Videos_015_x264", StartFrame: 5, EndFrame: 9}, a)

	a, ok = ParseArtifactName(ArtifactName(4, -1, "v.mp4", 0, 448))
	assert.True(t, ok)
	assert.Equal(t, Artifact{ID: 4, Frame: -1, Video: "v.mp4", StartFrame: 0, EndFrame: 448}, a)

	for _, bad := range []string{"readme.txt", "x_v_1-2.npy", "000001_v.npy", "000001_v_a-2.npy"} {
		_, ok := ParseArtifactName(bad)
		assert.False(t, ok, bad)
	}
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "ucfclipcentroid", CollectionName("clipcentroid"))
}

func TestClipFileName(t *testing.T) {
	assert.Equal(t, "Abuse001_x264_0-448.npy", ClipFileName("Abuse001_x264", 0, 448))
}
