// Package testutil writes reference datasets and model artifacts for tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"cytodash/ml"
)

// Row is one sample of a reference dataset.
type Row struct {
	ID        string
	Diagnosis string
	Features  ml.FeatureRecord
}

// UniformRecord returns a record with every feature set to value.
func UniformRecord(value float64) ml.FeatureRecord {
	record := make(ml.FeatureRecord, ml.FeatureCount())
	for _, key := range ml.FeatureKeys() {
		record[key] = value
	}
	return record
}

// WithValue returns a copy of record with key set to value.
func WithValue(record ml.FeatureRecord, key string, value float64) ml.FeatureRecord {
	out := record.Clone()
	out[key] = value
	return out
}

// DatasetCSV renders rows in the layout of the public WDBC export: id,
// diagnosis, the 30 features and an empty trailing placeholder column.
func DatasetCSV(rows []Row) string {
	var b strings.Builder
	header := append([]string{"id", "diagnosis"}, ml.FeatureKeys()...)
	header = append(header, "Unnamed: 32")
	b.WriteString(strings.Join(quoteAll(header), ","))
	b.WriteString("\n")
	for _, row := range rows {
		fields := []string{row.ID, row.Diagnosis}
		for _, key := range ml.FeatureKeys() {
			fields = append(fields, strconv.FormatFloat(row.Features[key], 'g', -1, 64))
		}
		fields = append(fields, "")
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\n")
	}
	return b.String()
}

// WriteFile writes content under dir and returns its path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteJSON marshals v to dir/name and returns its path.
func WriteJSON(t testing.TB, dir, name string, v interface{}) string {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	return WriteFile(t, dir, name, string(payload))
}

// ReferenceRows returns two malignant and two benign samples. Malignant rows
// have large radius_mean values.
func ReferenceRows() []Row {
	return []Row{
		{ID: "842302", Diagnosis: "M", Features: WithValue(UniformRecord(2), "radius_mean", 20)},
		{ID: "842517", Diagnosis: "M", Features: WithValue(UniformRecord(3), "radius_mean", 18)},
		{ID: "8510426", Diagnosis: "B", Features: WithValue(UniformRecord(1), "radius_mean", 10)},
		{ID: "8510653", Diagnosis: "B", Features: WithValue(UniformRecord(0.5), "radius_mean", 12)},
	}
}

// RadiusModel is a logistic regression that only looks at radius_mean: with
// the identity scaler, radius above 15 is malignant.
func RadiusModel() *ml.LogisticRegression {
	coef := make([]float64, ml.FeatureCount())
	coef[0] = 1
	return &ml.LogisticRegression{
		Coef:      coef,
		Intercept: -15,
		Classes:   []int{0, 1},
		Features:  ml.FeatureKeys(),
	}
}

// IdentityScaler is a standard scaler that leaves vectors unchanged.
func IdentityScaler() *ml.StandardScaler {
	mean := make([]float64, ml.FeatureCount())
	scale := make([]float64, ml.FeatureCount())
	for i := range scale {
		scale[i] = 1
	}
	return &ml.StandardScaler{Mean: mean, Scale: scale}
}

// WriteArtifacts writes RadiusModel and IdentityScaler under dir.
func WriteArtifacts(t testing.TB, dir string) (modelPath, scalerPath string) {
	t.Helper()
	modelPath = WriteJSON(t, dir, "model/model.json", RadiusModel())
	scalerPath = WriteJSON(t, dir, "model/scaler.json", IdentityScaler())
	return modelPath, scalerPath
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Quote(v)
	}
	return out
}
