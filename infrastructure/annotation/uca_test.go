package annotation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSplits(t *testing.T, train, val, test string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UCFCrime_Train.json"), []byte(train), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UCFCrime_Val.json"), []byte(val), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UCFCrime_Test.json"), []byte(test), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeSplits(t,
		`{"Abuse001_x264": {"duration": 90.0, "timestamps": [[10.5, 20.0], [0.0, 5.2]], "sentences": ["A man kicks a dog.", "A car parks."]}}`,
		`{"Normal_Videos_015_x264": {"duration": 30.0, "timestamps": [[1.0, 3.0]], "sentences": ["People walk."]}}`,
		`{}`,
	)

	set, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"Abuse001_x264", "Normal_Videos_015_x264"}, set.Videos())

	abuse := set.For("Abuse001_x264.mp4")
	require.Len(t, abuse, 2)
	assert.Equal(t, "A car parks.", abuse[0].Sentence)
	assert.Equal(t, 0.0, abuse[0].Start)
	assert.Equal(t, "A man kicks a dog.", abuse[1].Sentence)
	assert.Equal(t, "train", abuse[1].Split)
	assert.Equal(t, "Abuse", abuse[1].ClassName)
	assert.True(t, abuse[1].Anomaly)
	assert.Equal(t, 90.0, abuse[1].Duration)

	normal := set.For("Normal_Videos_015_x264")
	require.Len(t, normal, 1)
	assert.Equal(t, "val", normal[0].Split)
	assert.Equal(t, NormalClass, normal[0].ClassName)
	assert.False(t, normal[0].Anomaly)

	assert.Empty(t, set.For("Unknown001_x264.mp4"))
}

func TestLoad_MismatchedSentences(t *testing.T) {
	dir := writeSplits(t, `{"Abuse001_x264": {"duration": 1, "timestamps": [[0, 1]], "sentences": []}}`, `{}`, `{}`)
	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "Abuse", ClassName("Abuse001_x264"))
	assert.Equal(t, "RoadAccidents", ClassName("RoadAccidents127_x264"))
	assert.Equal(t, NormalClass, ClassName("Normal_Videos_924_x264"))
	assert.Equal(t, "", ClassName("short"))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "Abuse001_x264", Stem("/data/Abuse/Abuse001_x264.mp4"))
	assert.Equal(t, "v", Stem("v"))
}
