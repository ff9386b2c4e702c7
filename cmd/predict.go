package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cytodash/dashboard"
	"cytodash/ml"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the diagnosis of one set of measurements",
	Long:  "Reads a JSON object of the 30 measurements from --input (or stdin with -) and prints the prediction. Without --input the reference dataset means are used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		asJSON, _ := cmd.Flags().GetBool("json")

		manager, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer manager.Close()

		var record ml.FeatureRecord
		if input == "" {
			record, err = manager.Defaults()
			if err != nil {
				return err
			}
		} else {
			record, err = readRecord(cmd, input)
			if err != nil {
				return err
			}
		}

		result, err := manager.Evaluate(cmd.Context(), record)
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		fmt.Fprintln(out, "Cell cluster prediction")
		fmt.Fprintf(out, "The cell cluster is: %s\n", result.Prediction.Label)
		fmt.Fprintf(out, "Probability of being benign: %.4f\n", result.Prediction.ProbabilityBenign)
		fmt.Fprintf(out, "Probability of being malignant: %.4f\n", result.Prediction.ProbabilityMalignant)
		for _, key := range result.DegenerateFeatures {
			fmt.Fprintf(out, "Warning: %s is constant in the reference data\n", key)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, result.Disclaimer)
		return nil
	},
}

func init() {
	predictCmd.Flags().String("input", "", "JSON file of measurements keyed by feature name, - for stdin")
	predictCmd.Flags().Bool("json", false, "Print the full evaluation as JSON")
}

// openManager loads the reference data and artifacts named by the config
// for a one-shot command.
func openManager(cmd *cobra.Command) (*dashboard.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	opts := dashboard.OptionsFromConfig(cfg)
	opts.Watch = false
	opts.Logger = logger
	manager, err := dashboard.NewManager(opts)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := manager.Load(ctx); err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	return manager, nil
}

func readRecord(cmd *cobra.Command, input string) (ml.FeatureRecord, error) {
	var r io.Reader
	if input == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var record ml.FeatureRecord
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode %s: %w", input, err)
	}
	return record, nil
}
