package ml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXOptions names the graph inputs and outputs of an exported classifier.
type ONNXOptions struct {
	SharedLibrary     string
	InputName         string
	LabelOutput       string
	ProbabilityOutput string
}

func (o ONNXOptions) withDefaults() ONNXOptions {
	if o.InputName == "" {
		o.InputName = "float_input"
	}
	if o.LabelOutput == "" {
		o.LabelOutput = "output_label"
	}
	if o.ProbabilityOutput == "" {
		o.ProbabilityOutput = "output_probability"
	}
	return o
}

// ONNXClassifier runs an exported classifier graph through onnxruntime. One
// session with preallocated tensors is shared; Run calls are serialized.
type ONNXClassifier struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	label   *ort.Tensor[int64]
	proba   *ort.Tensor[float32]
	width   int

	mu sync.Mutex
}

var ortInitMu sync.Mutex

// LoadONNXClassifier opens the graph at path and validates that it takes a
// single row of features and emits a label plus two class probabilities.
func LoadONNXClassifier(path string, opts ONNXOptions) (*ONNXClassifier, error) {
	opts = opts.withDefaults()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", path, err)
	}
	if err := initONNXRuntime(opts.SharedLibrary, filepath.Dir(path)); err != nil {
		return nil, err
	}

	inputs, _, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspect onnx graph: %w", err)
	}
	width := -1
	for _, info := range inputs {
		if info.Name != opts.InputName {
			continue
		}
		dims := info.Dimensions
		if len(dims) > 0 {
			width = int(dims[len(dims)-1])
		}
	}
	if width <= 0 {
		return nil, fmt.Errorf("onnx input %q missing or has no static feature dimension", opts.InputName)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(width)))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	label, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate label tensor: %w", err)
	}
	proba, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		input.Destroy()
		label.Destroy()
		return nil, fmt.Errorf("allocate probability tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{opts.InputName},
		[]string{opts.LabelOutput, opts.ProbabilityOutput},
		[]ort.Value{input},
		[]ort.Value{label, proba},
		nil,
	)
	if err != nil {
		input.Destroy()
		label.Destroy()
		proba.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXClassifier{
		session: session,
		input:   input,
		label:   label,
		proba:   proba,
		width:   width,
	}, nil
}

func (c *ONNXClassifier) InputWidth() int {
	return c.width
}

func (c *ONNXClassifier) Predict(features []float64) (int, error) {
	label, _, err := c.run(features)
	return label, err
}

func (c *ONNXClassifier) PredictProba(features []float64) ([]float64, error) {
	_, proba, err := c.run(features)
	return proba, err
}

func (c *ONNXClassifier) run(features []float64) (int, []float64, error) {
	if c == nil || c.session == nil {
		return 0, nil, errors.New("onnx classifier not initialized")
	}
	if len(features) != c.width {
		return 0, nil, &ShapeMismatchError{Stage: "onnx classifier", Expected: c.width, Got: len(features)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.input.GetData()
	for i, v := range features {
		data[i] = float32(v)
	}
	if err := c.session.Run(); err != nil {
		return 0, nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := c.proba.GetData()
	proba := []float64{float64(raw[0]), float64(raw[1])}
	return int(c.label.GetData()[0]), proba, nil
}

// Close releases the session and its tensors.
func (c *ONNXClassifier) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.session.Destroy()
	c.input.Destroy()
	c.label.Destroy()
	c.proba.Destroy()
	c.session = nil
	return err
}

func initONNXRuntime(libPath, modelDir string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = resolveSharedLibraryPath(modelDir)
	}
	if libPath == "" {
		return errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or model.onnx.shared_library")
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
