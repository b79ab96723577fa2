//go:build ORT

package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveORTLibDir(t *testing.T) {
	t.Setenv("ORT_LIB_DIR", "/opt/onnxruntime/lib")
	assert.Equal(t, "/opt/onnxruntime/lib", resolveORTLibDir(t.TempDir()))

	t.Setenv("ORT_LIB_DIR", "")
	modelDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(modelDir, "lib"), 0o755))
	assert.Equal(t, filepath.Join(modelDir, "lib"), resolveORTLibDir(modelDir))
}
