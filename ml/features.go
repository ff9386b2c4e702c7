package ml

import (
	"sort"
	"strings"
)

// SchemaVersion names the canonical feature ordering consumed by the model and
// scaler artifacts. Bump it whenever FeatureKeys changes.
const SchemaVersion = "wdbc-30/v1"

var baseMeasurements = []string{
	"radius",
	"texture",
	"perimeter",
	"area",
	"smoothness",
	"compactness",
	"concavity",
	"concave points",
	"symmetry",
	"fractal_dimension",
}

var families = []string{"mean", "se", "worst"}

var featureKeys = buildFeatureKeys()

var featureIndex = func() map[string]int {
	index := make(map[string]int, len(featureKeys))
	for i, key := range featureKeys {
		index[key] = i
	}
	return index
}()

func buildFeatureKeys() []string {
	keys := make([]string, 0, len(baseMeasurements)*len(families))
	for _, family := range families {
		for _, base := range baseMeasurements {
			keys = append(keys, base+"_"+family)
		}
	}
	return keys
}

// FeatureRecord maps the 30 canonical feature keys to raw measurements.
type FeatureRecord map[string]float64

// ScaledFeatureRecord holds the same keys normalized against reference bounds.
type ScaledFeatureRecord map[string]float64

// FeatureKeys returns the canonical keys in training order.
func FeatureKeys() []string {
	return append([]string(nil), featureKeys...)
}

// FeatureCount is the width of every feature vector.
func FeatureCount() int {
	return len(featureKeys)
}

func BaseMeasurements() []string {
	return append([]string(nil), baseMeasurements...)
}

func Families() []string {
	return append([]string(nil), families...)
}

// FamilyKeys returns the 10 keys of one suffix family in category order.
func FamilyKeys(family string) []string {
	keys := make([]string, 0, len(baseMeasurements))
	for _, base := range baseMeasurements {
		keys = append(keys, base+"_"+family)
	}
	return keys
}

// IsFeatureKey reports whether key is one of the canonical keys.
func IsFeatureKey(key string) bool {
	_, ok := featureIndex[key]
	return ok
}

// FeatureLabel returns the slider label for key, e.g. "Concave points (se)".
func FeatureLabel(key string) string {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 {
		return key
	}
	base, family := key[:idx], key[idx+1:]
	name := strings.ReplaceAll(base, "_", " ")
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	for _, f := range families {
		if f == family {
			return name + " (" + family + ")"
		}
	}
	return name
}

// Validate checks that the record carries exactly the canonical keys.
func (r FeatureRecord) Validate() error {
	var missing, unexpected []string
	for _, key := range featureKeys {
		if _, ok := r[key]; !ok {
			missing = append(missing, key)
		}
	}
	for key := range r {
		if !IsFeatureKey(key) {
			unexpected = append(unexpected, key)
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	sort.Strings(unexpected)
	return &ShapeMismatchError{
		Expected:   len(featureKeys),
		Got:        len(r),
		Missing:    missing,
		Unexpected: unexpected,
	}
}

// Clone returns an independent copy of the record.
func (r FeatureRecord) Clone() FeatureRecord {
	out := make(FeatureRecord, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

// FeatureVector assembles the positional vector the artifacts consume.
func FeatureVector(record FeatureRecord) ([]float64, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	vector := make([]float64, len(featureKeys))
	for i, key := range featureKeys {
		vector[i] = record[key]
	}
	return vector, nil
}

// RecordFromVector is the inverse of FeatureVector.
func RecordFromVector(vector []float64) (FeatureRecord, error) {
	if len(vector) != len(featureKeys) {
		return nil, &ShapeMismatchError{Expected: len(featureKeys), Got: len(vector)}
	}
	record := make(FeatureRecord, len(featureKeys))
	for i, key := range featureKeys {
		record[key] = vector[i]
	}
	return record, nil
}
