// Package dataset loads the reference cytology dataset used for slider ranges
// and chart scaling.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"cytodash/ml"
)

const (
	DiagnosisColumn   = "diagnosis"
	IdentifierColumn  = "id"
	PlaceholderColumn = "Unnamed: 32"
)

// Diagnosis labels as stored in the dataset.
const (
	LabelBenign    = 0
	LabelMalignant = 1
)

var diagnosisLabels = map[string]int{
	"M": LabelMalignant,
	"B": LabelBenign,
}

// DataFormatError reports a malformed reference dataset.
type DataFormatError struct {
	Path   string
	Row    int
	Column string
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	var b strings.Builder
	b.WriteString("invalid dataset")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// Load reads the reference dataset at path.
func Load(path string) (*ReferenceDataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ds, err := Read(file)
	if err != nil {
		var formatErr *DataFormatError
		if errors.As(err, &formatErr) {
			formatErr.Path = path
		}
		return nil, err
	}
	return ds, nil
}

// Read parses a dataset from r. The identifier and placeholder columns are
// dropped; diagnosis symbols M and B map to 1 and 0.
func Read(r io.Reader) (*ReferenceDataset, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &DataFormatError{Reason: "missing header row"}
	}
	if err != nil {
		return nil, &DataFormatError{Reason: "read header", Err: err}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	diagnosisIdx, ok := columns[DiagnosisColumn]
	if !ok {
		return nil, &DataFormatError{Column: DiagnosisColumn, Reason: "required column missing"}
	}
	keys := ml.FeatureKeys()
	featureIdx := make([]int, len(keys))
	var missing []string
	for i, key := range keys {
		idx, ok := columns[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		featureIdx[i] = idx
	}
	if len(missing) > 0 {
		return nil, &DataFormatError{
			Column: strings.Join(missing, ", "),
			Reason: "required feature columns missing",
		}
	}

	var (
		records []ml.FeatureRecord
		labels  []int
	)
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DataFormatError{Row: row, Reason: "read row", Err: err}
		}

		symbol := strings.TrimSpace(fields[diagnosisIdx])
		label, ok := diagnosisLabels[symbol]
		if !ok {
			return nil, &DataFormatError{Row: row, Column: DiagnosisColumn, Reason: fmt.Sprintf("unrecognized diagnosis %q", symbol)}
		}

		record := make(ml.FeatureRecord, len(keys))
		for i, key := range keys {
			raw := strings.TrimSpace(fields[featureIdx[i]])
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &DataFormatError{Row: row, Column: key, Reason: fmt.Sprintf("invalid number %q", raw)}
			}
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return nil, &DataFormatError{Row: row, Column: key, Reason: fmt.Sprintf("non-finite number %q", raw)}
			}
			record[key] = value
		}
		records = append(records, record)
		labels = append(labels, label)
	}

	if len(records) == 0 {
		return nil, &DataFormatError{Reason: "dataset has no rows"}
	}
	return newReferenceDataset(records, labels), nil
}
