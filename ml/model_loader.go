package ml

import (
	"fmt"
)

const (
	ModelLogisticRegression = "logistic_regression"
	ModelDecisionTree       = "decision_tree"
	ModelONNX               = "onnx"

	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// Artifacts pairs a loaded classifier with the scaler it was trained behind.
type Artifacts struct {
	Model  Classifier
	Scaler Transformer
}

// Close releases native resources held by either artifact.
func (a *Artifacts) Close() error {
	if a == nil {
		return nil
	}
	var firstErr error
	for _, v := range []interface{}{a.Model, a.Scaler} {
		if c, ok := v.(Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// LoadClassifier loads a model artifact of the given kind.
func LoadClassifier(kind, path string, opts ONNXOptions) (Classifier, error) {
	switch kind {
	case ModelLogisticRegression, "":
		model := &LogisticRegression{}
		if err := model.Load(path); err != nil {
			return nil, &ArtifactLoadError{Artifact: "model", Path: path, Err: err}
		}
		return model, nil
	case ModelDecisionTree:
		model := &DecisionTree{}
		if err := model.Load(path); err != nil {
			return nil, &ArtifactLoadError{Artifact: "model", Path: path, Err: err}
		}
		return model, nil
	case ModelONNX:
		model, err := LoadONNXClassifier(path, opts)
		if err != nil {
			return nil, &ArtifactLoadError{Artifact: "model", Path: path, Err: err}
		}
		return model, nil
	default:
		return nil, &ArtifactLoadError{Artifact: "model", Path: path, Err: fmt.Errorf("unsupported model type %q", kind)}
	}
}

// LoadScaler loads a scaler artifact of the given kind.
func LoadScaler(kind, path string) (Transformer, error) {
	switch kind {
	case ScalerStandard, "":
		scaler := &StandardScaler{}
		if err := scaler.Load(path); err != nil {
			return nil, &ArtifactLoadError{Artifact: "scaler", Path: path, Err: err}
		}
		return scaler, nil
	case ScalerMinMax:
		scaler := &MinMaxScaler{}
		if err := scaler.Load(path); err != nil {
			return nil, &ArtifactLoadError{Artifact: "scaler", Path: path, Err: err}
		}
		return scaler, nil
	default:
		return nil, &ArtifactLoadError{Artifact: "scaler", Path: path, Err: fmt.Errorf("unsupported scaler type %q", kind)}
	}
}

// ArtifactSpec locates both artifacts on disk.
type ArtifactSpec struct {
	ModelType  string
	ModelPath  string
	ScalerType string
	ScalerPath string
	ONNX       ONNXOptions
}

// LoadArtifacts loads the model and scaler and checks both against the
// canonical feature schema.
func LoadArtifacts(spec ArtifactSpec) (*Artifacts, error) {
	scaler, err := LoadScaler(spec.ScalerType, spec.ScalerPath)
	if err != nil {
		return nil, err
	}
	model, err := LoadClassifier(spec.ModelType, spec.ModelPath, spec.ONNX)
	if err != nil {
		return nil, err
	}
	artifacts := &Artifacts{Model: model, Scaler: scaler}

	if err := checkSchema("scaler", scaler); err != nil {
		artifacts.Close()
		return nil, err
	}
	if err := checkSchema("model", model); err != nil {
		artifacts.Close()
		return nil, err
	}
	return artifacts, nil
}

func checkSchema(stage string, artifact interface{ InputWidth() int }) error {
	if width := artifact.InputWidth(); width != len(featureKeys) {
		return &ShapeMismatchError{Stage: stage, Expected: len(featureKeys), Got: width}
	}
	named, ok := artifact.(namedArtifact)
	if !ok {
		return nil
	}
	names := named.FeatureNames()
	if len(names) == 0 {
		return nil
	}
	if len(names) != len(featureKeys) {
		return &ShapeMismatchError{Stage: stage, Expected: len(featureKeys), Got: len(names)}
	}
	for i, key := range featureKeys {
		if names[i] != key {
			return &ShapeMismatchError{
				Stage:      fmt.Sprintf("%s feature order at position %d (want %q)", stage, i, key),
				Expected:   len(featureKeys),
				Got:        len(names),
				Unexpected: []string{names[i]},
			}
		}
	}
	return nil
}
