//go:build ORT

package provider

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

func newHugotSession(modelDir string) (*hugot.Session, error) {
	opts := []options.WithOption{}
	if ortLibDir := resolveORTLibDir(modelDir); ortLibDir != "" {
		opts = append(opts, options.WithOnnxLibraryPath(ortLibDir))
	}
	session, err := hugot.NewORTSession(opts...)
	if err != nil {
		return nil, fmt.Errorf("onnx runtime session for %s: %w", modelDir, err)
	}
	return session, nil
}

// resolveORTLibDir finds the ONNX Runtime shared library directory: ORT_LIB_DIR,
// then lib/ inside the model directory, beside the executable, or under the
// working directory. Empty lets hugot use platform defaults.
func resolveORTLibDir(modelDir string) string {
	if dir := os.Getenv("ORT_LIB_DIR"); dir != "" {
		return dir
	}

	candidates := []string{filepath.Join(modelDir, "lib")}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "lib"))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "lib"))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}
