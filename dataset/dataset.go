package dataset

import (
	"cytodash/ml"
)

// ReferenceDataset is the read-only table of historical samples. Accessors
// return copies.
type ReferenceDataset struct {
	records []ml.FeatureRecord
	labels  []int
	summary Summary
}

// FeatureSummary describes one feature column.
type FeatureSummary struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Summary maps feature key to column statistics.
type Summary map[string]FeatureSummary

func newReferenceDataset(records []ml.FeatureRecord, labels []int) *ReferenceDataset {
	ds := &ReferenceDataset{records: records, labels: labels}
	ds.summary = computeSummary(records)
	return ds
}

func (d *ReferenceDataset) Len() int {
	return len(d.records)
}

// Records returns copies of every sample's features.
func (d *ReferenceDataset) Records() []ml.FeatureRecord {
	out := make([]ml.FeatureRecord, len(d.records))
	for i, record := range d.records {
		out[i] = record.Clone()
	}
	return out
}

func (d *ReferenceDataset) Labels() []int {
	return append([]int(nil), d.labels...)
}

// Column returns every value of one feature in row order.
func (d *ReferenceDataset) Column(key string) []float64 {
	if !ml.IsFeatureKey(key) {
		return nil
	}
	values := make([]float64, len(d.records))
	for i, record := range d.records {
		values[i] = record[key]
	}
	return values
}

// Summary returns per-feature min, max and mean.
func (d *ReferenceDataset) Summary() Summary {
	out := make(Summary, len(d.summary))
	for key, s := range d.summary {
		out[key] = s
	}
	return out
}

// Bounds returns the scaling bounds derived from this dataset.
func (d *ReferenceDataset) Bounds() (ml.Bounds, error) {
	return ml.ComputeBounds(d.records)
}

// Means returns the record of per-feature averages.
func (d *ReferenceDataset) Means() ml.FeatureRecord {
	record := make(ml.FeatureRecord, len(d.summary))
	for key, s := range d.summary {
		record[key] = s.Mean
	}
	return record
}

func computeSummary(records []ml.FeatureRecord) Summary {
	summary := make(Summary, ml.FeatureCount())
	if len(records) == 0 {
		return summary
	}
	for _, key := range ml.FeatureKeys() {
		s := FeatureSummary{Min: records[0][key], Max: records[0][key]}
		total := 0.0
		for _, record := range records {
			value := record[key]
			if value < s.Min {
				s.Min = value
			}
			if value > s.Max {
				s.Max = value
			}
			total += value
		}
		s.Mean = total / float64(len(records))
		summary[key] = s
	}
	return summary
}
