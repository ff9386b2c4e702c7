package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// StandardScaler applies (x - mean) / scale per position.
type StandardScaler struct {
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
	Features []string  `json:"feature_names,omitempty"`
}

func (s *StandardScaler) InputWidth() int {
	return len(s.Mean)
}

func (s *StandardScaler) FeatureNames() []string {
	return s.Features
}

func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) {
		return nil, &ShapeMismatchError{Stage: "standard scaler", Expected: len(s.Mean), Got: len(features)}
	}
	out := make([]float64, len(features))
	for i, v := range features {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

func (s *StandardScaler) Load(path string) error {
	var scaler StandardScaler
	if err := readJSON(path, &scaler); err != nil {
		return err
	}
	if len(scaler.Mean) == 0 {
		return errors.New("mean is empty")
	}
	if len(scaler.Mean) != len(scaler.Scale) {
		return fmt.Errorf("mean/scale length mismatch: %d vs %d", len(scaler.Mean), len(scaler.Scale))
	}
	*s = scaler
	return nil
}

// MinMaxScaler applies x*scale + min per position.
type MinMaxScaler struct {
	Min      []float64 `json:"min"`
	Scale    []float64 `json:"scale"`
	Features []string  `json:"feature_names,omitempty"`
}

func (s *MinMaxScaler) InputWidth() int {
	return len(s.Min)
}

func (s *MinMaxScaler) FeatureNames() []string {
	return s.Features
}

func (s *MinMaxScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Min) {
		return nil, &ShapeMismatchError{Stage: "min-max scaler", Expected: len(s.Min), Got: len(features)}
	}
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = v*s.Scale[i] + s.Min[i]
	}
	return out, nil
}

func (s *MinMaxScaler) Load(path string) error {
	var scaler MinMaxScaler
	if err := readJSON(path, &scaler); err != nil {
		return err
	}
	if len(scaler.Min) == 0 {
		return errors.New("min is empty")
	}
	if len(scaler.Min) != len(scaler.Scale) {
		return fmt.Errorf("min/scale length mismatch: %d vs %d", len(scaler.Min), len(scaler.Scale))
	}
	*s = scaler
	return nil
}

func readJSON(path string, v interface{}) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}
