package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-harvester/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect harvest run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List harvest runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run, including its checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if run == nil {
			return eris.Errorf("run %s not found", args[0])
		}

		checkpoints, err := st.ListCheckpoints(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show checkpoints")
		}

		out := struct {
			*model.Run
			CheckpointFiles []model.Checkpoint `json:"checkpoint_files,omitempty"`
		}{run, checkpoints}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSEARCH\tLOCATION\tRECORDS\tFIELDS")
	for _, r := range runs {
		records, fields := "-", "-"
		if r.Summary != nil {
			records = fmt.Sprintf("%d", r.Summary.RecordsExtracted)
			fields = fmt.Sprintf("%d", r.Summary.FieldCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Status,
			r.Request.SearchTerm,
			r.Request.Location,
			records,
			fields,
		)
	}
	_ = tw.Flush()
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "maximum runs to list")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
