package ml

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestONNXOptionsDefaults(t *testing.T) {
	opts := ONNXOptions{InputName: "x"}.withDefaults()
	assert.Equal(t, "x", opts.InputName)
	assert.Equal(t, "output_label", opts.LabelOutput)
	assert.Equal(t, "output_probability", opts.ProbabilityOutput)
}

func TestResolveSharedLibraryPath(t *testing.T) {
	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "/opt/ort/libonnxruntime.so")
	assert.Equal(t, "/opt/ort/libonnxruntime.so", resolveSharedLibraryPath(t.TempDir()))

	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "")
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib", "libonnxruntime.so")
	require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0o755))
	require.NoError(t, os.WriteFile(lib, nil, 0o600))
	assert.Equal(t, lib, resolveSharedLibraryPath(dir))
}

func TestLoadONNXClassifierMissingModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	_, err := LoadClassifier(ModelONNX, path, ONNXOptions{})
	var loadErr *ArtifactLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
}

func TestNilONNXClassifierClose(t *testing.T) {
	var c *ONNXClassifier
	assert.NoError(t, c.Close())
}
