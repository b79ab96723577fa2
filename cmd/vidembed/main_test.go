package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/infrastructure/encoder"
	"github.com/helixml/vidembed/infrastructure/store"
	"github.com/helixml/vidembed/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("LEDGER_URL", "")
	t.Setenv("NO_COLOR", "1")

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEncode_UnknownEncoderRejectedBeforeIO(t *testing.T) {
	_, err := execute(t, "encode", "--corpus", "/does/not/exist", "--annotations", "/does/not/exist", "--encoder", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrConfiguration)
	assert.Contains(t, err.Error(), `unknown encoder "nope"`)
}

func TestEncode_UnknownStoreRejectedBeforeIO(t *testing.T) {
	_, err := execute(t, "encode", "--corpus", "/does/not/exist", "--annotations", "/does/not/exist", "--store", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrConfiguration)
	assert.Contains(t, err.Error(), `unknown store "nope"`)
}

func TestEncodeFlags_Validate(t *testing.T) {
	base := encodeFlags{
		corpus:      "corpus",
		annotations: "ann",
		mode:        modeAnnotated,
		stride:      1,
		encoder:     encoderFlags{name: encoder.NameDefault},
		store:       storeFlags{name: store.NameLocal},
	}
	require.NoError(t, base.validate())

	tests := []struct {
		name   string
		mutate func(*encodeFlags)
		want   string
	}{
		{"missing corpus", func(f *encodeFlags) { f.corpus = "" }, "--corpus is required"},
		{"missing annotations", func(f *encodeFlags) { f.annotations = "" }, "--annotations is required"},
		{"unknown mode", func(f *encodeFlags) { f.mode = "sliding" }, `unknown mode "sliding"`},
		{"negative stride", func(f *encodeFlags) { f.stride = -1 }, "--stride must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			tt.mutate(&f)
			err := f.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	windowed := base
	windowed.mode = modeWindowed
	windowed.annotations = ""
	assert.NoError(t, windowed.validate())
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vidembed version dev")
}

func TestListEncodersAndStores(t *testing.T) {
	out, err := execute(t, "list", "encoders")
	require.NoError(t, err)
	assert.Equal(t, encoder.Names(), strings.Fields(out))

	out, err = execute(t, "list", "stores")
	require.NoError(t, err)
	assert.Equal(t, store.Names(), strings.Fields(out))
}

func TestListRuns_RequiresLedger(t *testing.T) {
	_, err := execute(t, "list", "runs")
	assert.ErrorIs(t, err, embedding.ErrConfiguration)
}

func TestListRuns_EmptyLedger(t *testing.T) {
	url := "sqlite:///" + filepath.Join(t.TempDir(), "ledger.db")
	out, err := execute(t, "list", "runs", "--ledger", url)
	require.NoError(t, err)
	assert.Contains(t, out, "ENCODER")
}

func TestCount_EmptyLocalStore(t *testing.T) {
	out, err := execute(t, "list", "count", "--out-dir", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestSearch_RequiresTextEncoder(t *testing.T) {
	t.Setenv("HUGOT_MODEL_DIR", "")
	t.Setenv("TEXT_ENDPOINT_BASE_URL", "")
	t.Setenv("TEXT_ENDPOINT_MODEL", "")
	_, err := execute(t, "search", "--out-dir", t.TempDir(), "a person running")
	assert.ErrorIs(t, err, embedding.ErrConfiguration)
}

func TestCheckStore(t *testing.T) {
	cfg := config.NewAppConfigWithOptions(config.WithMilvus(config.Milvus{}), config.WithQdrant(config.Qdrant{}))
	for _, name := range []string{store.NameMilvus, store.NameQdrant} {
		err := checkStore(cfg, storeFlags{name: name})
		require.ErrorIs(t, err, embedding.ErrConfiguration, name)
	}
	require.NoError(t, checkStore(config.NewAppConfig(), storeFlags{name: store.NameLocal}))
}

func TestBuildSearch_StoreCheckedBeforeEncoder(t *testing.T) {
	cfg := config.NewAppConfigWithOptions(config.WithMilvus(config.Milvus{}))
	_, err := buildSearch(context.Background(), cfg, encoderFlags{name: "nope"}, storeFlags{name: store.NameMilvus}, nil)
	require.ErrorIs(t, err, embedding.ErrConfiguration)
	assert.Contains(t, err.Error(), "milvus: address is required")
}
