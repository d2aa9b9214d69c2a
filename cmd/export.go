package main

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-harvester/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <table.csv>",
	Short: "Convert a harvested CSV table to XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open table %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		rows, err := csv.NewReader(f).ReadAll()
		if err != nil {
			return eris.Wrapf(err, "parse table %s", args[0])
		}

		out := exportOut
		if out == "" {
			out = strings.TrimSuffix(args[0], ".csv") + ".xlsx"
		}

		fields, records := export.RowsFromCSVCells(rows)
		return export.WriteXLSX(out, fields, records)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output .xlsx path (default: table path with .xlsx)")
	rootCmd.AddCommand(exportCmd)
}
