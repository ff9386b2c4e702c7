package ml_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cytodash/ml"
	"cytodash/testutil"
)

func TestComputeBoundsAndScale(t *testing.T) {
	records := []ml.FeatureRecord{
		testutil.WithValue(testutil.UniformRecord(1), "radius_mean", 10),
		testutil.WithValue(testutil.UniformRecord(3), "radius_mean", 20),
	}
	bounds, err := ml.ComputeBounds(records)
	require.NoError(t, err)
	assert.Equal(t, ml.Bound{Min: 10, Max: 20}, bounds["radius_mean"])
	assert.Equal(t, ml.Bound{Min: 1, Max: 3}, bounds["texture_worst"])
	require.NoError(t, bounds.Validate())

	input := testutil.WithValue(testutil.UniformRecord(2), "radius_mean", 15)
	scaled, err := ml.Scale(input, bounds)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scaled["radius_mean"], 1e-12)
	assert.InDelta(t, 0.5, scaled["area_se"], 1e-12)
}

func TestScaleIsLinearWithinBounds(t *testing.T) {
	const min, max = 0.05, 0.4
	bounds := ml.Bounds{"smoothness_mean": {Min: min, Max: max}}

	for _, tt := range []struct {
		value float64
		want  float64
	}{
		{min, 0},
		{max, 1},
		{(min + max) / 2, 0.5},
	} {
		scaled, err := ml.Scale(ml.FeatureRecord{"smoothness_mean": tt.value}, bounds)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, scaled["smoothness_mean"], 1e-9)
	}
}

func TestScaleDoesNotClamp(t *testing.T) {
	bounds := ml.Bounds{"area_mean": {Min: 100, Max: 200}}
	scaled, err := ml.Scale(ml.FeatureRecord{"area_mean": 300}, bounds)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, scaled["area_mean"], 1e-12)

	scaled, err = ml.Scale(ml.FeatureRecord{"area_mean": 0}, bounds)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, scaled["area_mean"], 1e-12)
}

func TestScaleDegenerateFeatureYieldsNaN(t *testing.T) {
	records := []ml.FeatureRecord{
		testutil.WithValue(testutil.UniformRecord(1), "smoothness_mean", 0.1),
		testutil.WithValue(testutil.UniformRecord(2), "smoothness_mean", 0.1),
	}
	bounds, err := ml.ComputeBounds(records)
	require.NoError(t, err)

	var degenerate *ml.DegenerateFeatureError
	require.True(t, errors.As(bounds.Validate(), &degenerate))
	assert.Equal(t, []string{"smoothness_mean"}, degenerate.Keys)
	assert.Equal(t, []string{"smoothness_mean"}, bounds.Degenerate())

	scaled, err := ml.Scale(testutil.UniformRecord(1.5), bounds)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(scaled["smoothness_mean"]))
	assert.InDelta(t, 0.5, scaled["radius_mean"], 1e-12)
}

func TestScaleUnknownKey(t *testing.T) {
	_, err := ml.Scale(ml.FeatureRecord{"radius_median": 1}, ml.Bounds{})
	var shapeErr *ml.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, []string{"radius_median"}, shapeErr.Unexpected)
}

func TestComputeBoundsEmpty(t *testing.T) {
	_, err := ml.ComputeBounds(nil)
	require.Error(t, err)
}
