package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-harvester/internal/report"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report <table.csv>",
	Short: "Summarize a harvested table",
	Long:  "Aggregates a finished table into row counts, per-field fill rates, a rating histogram, and the most common categories.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open table %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		summary, err := report.FromCSV(f)
		if err != nil {
			return err
		}

		if reportJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		return summary.WriteText(os.Stdout)
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit the summary as JSON")
	rootCmd.AddCommand(reportCmd)
}
