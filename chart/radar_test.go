package chart_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cytodash/chart"
	"cytodash/ml"
)

func scaledRecord() ml.ScaledFeatureRecord {
	scaled := make(ml.ScaledFeatureRecord)
	for i, key := range ml.FeatureKeys() {
		scaled[key] = float64(i) / 100
	}
	return scaled
}

func TestBuildRadarShape(t *testing.T) {
	spec := chart.BuildRadar(scaledRecord())

	require.Len(t, spec.Data, 3)
	names := []string{"Mean Value", "Standard Value", "Worst Value"}
	for i, trace := range spec.Data {
		assert.Equal(t, names[i], trace.Name)
		assert.Equal(t, "scatterpolar", trace.Type)
		assert.Equal(t, "toself", trace.Fill)
		require.Len(t, trace.R, 10)
		assert.Equal(t, chart.Categories, trace.Theta)
		for j, v := range trace.R {
			assert.InDelta(t, float64(i*10+j)/100, float64(v), 1e-12)
		}
	}
	assert.True(t, spec.Layout.ShowLegend)
	assert.True(t, spec.Layout.Polar.RadialAxis.Visible)
	assert.Equal(t, [2]float64{0, 1}, spec.Layout.Polar.RadialAxis.Range)
}

func TestBuildRadarDeterministic(t *testing.T) {
	first, err := json.Marshal(chart.BuildRadar(scaledRecord()))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(chart.BuildRadar(scaledRecord()))
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(again))
	}
}

func TestBuildRadarEncodesNaNAsNull(t *testing.T) {
	scaled := scaledRecord()
	scaled["smoothness_mean"] = math.NaN()
	delete(scaled, "area_worst")

	payload, err := json.Marshal(chart.BuildRadar(scaled))
	require.NoError(t, err)

	var decoded struct {
		Data []struct {
			R []*float64 `json:"r"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Nil(t, decoded.Data[0].R[4])
	assert.Nil(t, decoded.Data[2].R[3])
	require.NotNil(t, decoded.Data[0].R[0])
	assert.Equal(t, 0.0, *decoded.Data[0].R[0])
}
