package ml

import (
	"errors"
	"math"
	"sort"
)

// Bound is the observed range of one feature in the reference data.
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Degenerate reports a zero-width range.
func (b Bound) Degenerate() bool {
	return b.Max == b.Min
}

// Bounds holds per-feature ranges keyed by canonical feature key.
type Bounds map[string]Bound

// ComputeBounds derives per-feature min and max from the reference records.
func ComputeBounds(records []FeatureRecord) (Bounds, error) {
	if len(records) == 0 {
		return nil, errors.New("records is empty")
	}

	bounds := make(Bounds, len(featureKeys))
	for i, record := range records {
		if err := record.Validate(); err != nil {
			return nil, err
		}
		for _, key := range featureKeys {
			value := record[key]
			if i == 0 {
				bounds[key] = Bound{Min: value, Max: value}
				continue
			}
			current := bounds[key]
			if value < current.Min {
				current.Min = value
			}
			if value > current.Max {
				current.Max = value
			}
			bounds[key] = current
		}
	}
	return bounds, nil
}

// Degenerate returns the keys whose range is zero, in canonical order.
func (b Bounds) Degenerate() []string {
	var keys []string
	for _, key := range featureKeys {
		if bound, ok := b[key]; ok && bound.Degenerate() {
			keys = append(keys, key)
		}
	}
	return keys
}

// Validate fails with DegenerateFeatureError when any feature has a zero range.
// Scaling such a feature yields NaN.
func (b Bounds) Validate() error {
	if keys := b.Degenerate(); len(keys) > 0 {
		return &DegenerateFeatureError{Keys: keys}
	}
	return nil
}

// Scale min-max normalizes every key of record against bounds. Values outside
// the observed range are not clamped.
func Scale(record FeatureRecord, bounds Bounds) (ScaledFeatureRecord, error) {
	scaled := make(ScaledFeatureRecord, len(record))
	var missing []string
	for key, value := range record {
		bound, ok := bounds[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		scaled[key] = NormalizeFeature(value, bound.Min, bound.Max)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ShapeMismatchError{
			Stage:      "scaling",
			Expected:   len(bounds),
			Got:        len(record),
			Unexpected: missing,
		}
	}
	return scaled, nil
}

// NormalizeFeature maps value into [0,1] relative to [min,max]. A zero-width
// range yields NaN.
func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return math.NaN()
	}
	return (value - min) / (max - min)
}
