package ml

import (
	"errors"
	"fmt"
	"math"
)

// Diagnosis is the predicted class.
type Diagnosis string

const (
	Benign    Diagnosis = "Benign"
	Malignant Diagnosis = "Malignant"
)

// DiagnosisFromLabel maps a model label: 0 is benign, anything else malignant.
func DiagnosisFromLabel(label int) Diagnosis {
	if label == 0 {
		return Benign
	}
	return Malignant
}

// PredictionResult is one classification of a feature record.
type PredictionResult struct {
	Label                Diagnosis `json:"label"`
	ProbabilityBenign    float64   `json:"probability_benign"`
	ProbabilityMalignant float64   `json:"probability_malignant"`
}

// Predict runs raw through scaler then model. The record is assembled in
// canonical order because both artifacts consume positional vectors.
func Predict(raw FeatureRecord, model Classifier, scaler Transformer) (*PredictionResult, error) {
	if model == nil || scaler == nil {
		return nil, errors.New("model and scaler are required")
	}
	vector, err := FeatureVector(raw)
	if err != nil {
		return nil, err
	}
	return PredictVector(vector, model, scaler)
}

// PredictVector is Predict for an already assembled canonical vector.
func PredictVector(vector []float64, model Classifier, scaler Transformer) (*PredictionResult, error) {
	if width := scaler.InputWidth(); width != len(vector) {
		return nil, &ShapeMismatchError{Stage: "scaler", Expected: width, Got: len(vector)}
	}
	scaled, err := scaler.Transform(vector)
	if err != nil {
		return nil, fmt.Errorf("transform features: %w", err)
	}
	if width := model.InputWidth(); width != len(scaled) {
		return nil, &ShapeMismatchError{Stage: "model", Expected: width, Got: len(scaled)}
	}

	label, err := model.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	proba, err := model.PredictProba(scaled)
	if err != nil {
		return nil, fmt.Errorf("predict probabilities: %w", err)
	}
	if len(proba) != 2 {
		return nil, &ShapeMismatchError{Stage: "class probabilities", Expected: 2, Got: len(proba)}
	}

	sum := proba[0] + proba[1]
	if math.IsNaN(sum) || math.IsInf(sum, 0) || sum <= 0 {
		return nil, fmt.Errorf("invalid class probabilities %v", proba)
	}

	return &PredictionResult{
		Label:                DiagnosisFromLabel(label),
		ProbabilityBenign:    proba[0] / sum,
		ProbabilityMalignant: proba[1] / sum,
	}, nil
}
