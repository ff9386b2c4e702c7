package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cytodash/ml"
)

var boundsCmd = &cobra.Command{
	Use:   "bounds",
	Short: "Show the per-feature range of the reference dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer manager.Close()

		summary, degenerate, err := manager.Summary()
		if err != nil {
			return err
		}
		constant := make(map[string]bool, len(degenerate))
		for _, key := range degenerate {
			constant[key] = true
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FEATURE\tLABEL\tMIN\tMAX\tMEAN\t")
		for _, key := range ml.FeatureKeys() {
			s := summary[key]
			note := ""
			if constant[key] {
				note = "constant"
			}
			fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%.4f\t%s\n", key, ml.FeatureLabel(key), s.Min, s.Max, s.Mean, note)
		}
		return w.Flush()
	},
}
