package ml

import (
	"errors"
	"fmt"
	"math"
)

// LogisticRegression evaluates an exported linear model: P(class 1) is the
// sigmoid of coef·x + intercept.
type LogisticRegression struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
	Classes   []int     `json:"classes"`
	Features  []string  `json:"feature_names,omitempty"`
}

func (lr *LogisticRegression) InputWidth() int {
	return len(lr.Coef)
}

func (lr *LogisticRegression) FeatureNames() []string {
	return lr.Features
}

func (lr *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if len(lr.Coef) == 0 {
		return nil, errors.New("model not loaded")
	}
	if len(features) != len(lr.Coef) {
		return nil, &ShapeMismatchError{Stage: "logistic regression", Expected: len(lr.Coef), Got: len(features)}
	}
	z := lr.Intercept
	for i, w := range lr.Coef {
		z += w * features[i]
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (lr *LogisticRegression) Predict(features []float64) (int, error) {
	proba, err := lr.PredictProba(features)
	if err != nil {
		return 0, err
	}
	classes := lr.Classes
	if len(classes) != 2 {
		classes = []int{0, 1}
	}
	if proba[1] > 0.5 {
		return classes[1], nil
	}
	return classes[0], nil
}

func (lr *LogisticRegression) Load(path string) error {
	var model LogisticRegression
	if err := readJSON(path, &model); err != nil {
		return err
	}
	if len(model.Coef) == 0 {
		return errors.New("coef is empty")
	}
	if len(model.Classes) == 0 {
		model.Classes = []int{0, 1}
	}
	if len(model.Classes) != 2 {
		return fmt.Errorf("expected 2 classes, got %d", len(model.Classes))
	}
	*lr = model
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
