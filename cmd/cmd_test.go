package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cytodash/dashboard"
	"cytodash/ml"
	"cytodash/testutil"
)

func writeConfig(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	dataPath := testutil.WriteFile(t, dir, "data/data.csv", testutil.DatasetCSV(testutil.ReferenceRows()))
	modelPath, scalerPath := testutil.WriteArtifacts(t, dir)
	configPath = testutil.WriteFile(t, dir, "config.yaml", fmt.Sprintf(`
data:
  path: %q
model:
  type: logistic_regression
  path: %q
scaler:
  type: standard
  path: %q
cache:
  watch: false
log:
  level: error
`, dataPath, modelPath, scalerPath))
	return dir, configPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPredictDefaultsToMeans(t *testing.T) {
	_, configPath := writeConfig(t)

	out, err := run(t, "predict", "--config", configPath, "--input=", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Cell cluster prediction")
	assert.Contains(t, out, "The cell cluster is: Benign")
	assert.Contains(t, out, dashboard.Disclaimer)
}

func TestPredictFromFile(t *testing.T) {
	dir, configPath := writeConfig(t)
	input := testutil.WriteJSON(t, dir, "sample.json", testutil.ReferenceRows()[0].Features)

	out, err := run(t, "predict", "--config", configPath, "--input", input, "--json")
	require.NoError(t, err)

	var result dashboard.Evaluation
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, ml.Malignant, result.Prediction.Label)
	assert.Len(t, result.Chart.Data, 3)
}

func TestPredictRejectsIncompleteInput(t *testing.T) {
	dir, configPath := writeConfig(t)
	input := testutil.WriteFile(t, dir, "sample.json", `{"radius_mean": 12}`)

	_, err := run(t, "predict", "--config", configPath, "--input", input, "--json=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestPredictMissingDataset(t *testing.T) {
	dir, configPath := writeConfig(t)
	testutil.WriteFile(t, dir, "data/data.csv", "id,radius_mean\n1,2\n")

	_, err := run(t, "predict", "--config", configPath, "--input=", "--json=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diagnosis")
}

func TestBounds(t *testing.T) {
	_, configPath := writeConfig(t)

	out, err := run(t, "bounds", "--config", configPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 31)
	assert.True(t, strings.HasPrefix(lines[0], "FEATURE"))
	fields := strings.Fields(lines[1])
	assert.Equal(t, "radius_mean", fields[0])
	assert.Contains(t, lines[1], "10")
	assert.Contains(t, lines[1], "20")
	assert.Contains(t, lines[1], "15.0000")

	_, err = run(t, "bounds", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
