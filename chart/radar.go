// Package chart assembles the radar chart of a scaled feature record. The
// spec serializes to a plotly figure.
package chart

import (
	"math"
	"strconv"

	"cytodash/ml"
)

// Categories are the angular axis labels, one per base measurement.
var Categories = []string{
	"Radius",
	"Texture",
	"Perimeter",
	"Area",
	"Smoothness",
	"Compactness",
	"Concavity",
	"Concave points",
	"Symmetry",
	"Fractal Dimension",
}

var series = []struct {
	name   string
	family string
}{
	{"Mean Value", "mean"},
	{"Standard Value", "se"},
	{"Worst Value", "worst"},
}

// Value is a radial coordinate. Non-finite values encode as null so an
// undefined scaling never renders as a point on the chart.
type Value float64

func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

type Trace struct {
	Type  string   `json:"type"`
	R     []Value  `json:"r"`
	Theta []string `json:"theta"`
	Fill  string   `json:"fill"`
	Name  string   `json:"name"`
}

type RadialAxis struct {
	Visible bool       `json:"visible"`
	Range   [2]float64 `json:"range"`
}

type Polar struct {
	RadialAxis RadialAxis `json:"radialaxis"`
}

type Layout struct {
	Polar      Polar `json:"polar"`
	ShowLegend bool  `json:"showlegend"`
}

// Spec is a renderable radar chart.
type Spec struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// BuildRadar returns the three-series radar chart of scaled. Keys absent from
// scaled are plotted as null.
func BuildRadar(scaled ml.ScaledFeatureRecord) Spec {
	traces := make([]Trace, 0, len(series))
	for _, s := range series {
		keys := ml.FamilyKeys(s.family)
		r := make([]Value, len(keys))
		for i, key := range keys {
			value, ok := scaled[key]
			if !ok {
				value = math.NaN()
			}
			r[i] = Value(value)
		}
		traces = append(traces, Trace{
			Type:  "scatterpolar",
			R:     r,
			Theta: append([]string(nil), Categories...),
			Fill:  "toself",
			Name:  s.name,
		})
	}

	return Spec{
		Data: traces,
		Layout: Layout{
			Polar: Polar{
				RadialAxis: RadialAxis{Visible: true, Range: [2]float64{0, 1}},
			},
			ShowLegend: true,
		},
	}
}
