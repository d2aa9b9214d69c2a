package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kennygrant/sanitize"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-harvester/internal/export"
	"github.com/sells-group/listing-harvester/internal/model"
)

// outputSlug derives the filename stem for a run's artifacts.
func outputSlug(req model.ScrapeRequest) string {
	stem := strings.Trim(sanitize.BaseName(req.SearchTerm)+"_"+sanitize.BaseName(req.Location), "_")
	if stem == "_" || stem == "" {
		return "run"
	}
	return strings.ToLower(stem)
}

// checkpoint re-derives the full table from the current schema and record
// snapshot and writes it atomically. Earlier checkpoint files may have
// fewer columns than later ones; that widening is expected.
func (c *Coordinator) checkpoint(ctx context.Context, st *runState) error {
	st.checkpoints++
	seq := st.checkpoints

	fields := st.acc.Fields()
	records := st.records.Snapshot()
	name := fmt.Sprintf("%s_checkpoint_%03d.csv", outputSlug(st.run.Request), seq)
	path := filepath.Join(c.opts.OutputDir, name)

	if err := writeCSVAtomic(path, fields, records); err != nil {
		return eris.Wrapf(err, "write checkpoint %d", seq)
	}
	zap.L().Info("checkpoint written",
		zap.Int("seq", seq),
		zap.String("path", path),
		zap.Int("rows", len(records)),
		zap.Int("columns", len(fields)),
	)

	if c.store != nil {
		cp := model.Checkpoint{
			RunID:     st.run.ID,
			Seq:       seq,
			Path:      path,
			Rows:      len(records),
			Columns:   len(fields),
			CreatedAt: time.Now().UTC(),
		}
		if err := c.store.AddCheckpoint(ctx, cp); err != nil {
			zap.L().Warn("checkpoint bookkeeping failed", zap.Int("seq", seq), zap.Error(err))
		}
	}
	return nil
}

// writeFinal writes the run's final table and returns its path.
func (c *Coordinator) writeFinal(st *runState) (string, error) {
	fields := st.acc.Fields()
	records := st.records.Snapshot()
	path := filepath.Join(c.opts.OutputDir, outputSlug(st.run.Request)+".csv")

	if err := writeCSVAtomic(path, fields, records); err != nil {
		return "", eris.Wrap(err, "write final table")
	}
	return path, nil
}

// writeSummaryJSON emits the run summary next to the table.
func (c *Coordinator) writeSummaryJSON(st *runState, summary *model.RunSummary) error {
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal summary")
	}
	path := filepath.Join(c.opts.OutputDir, outputSlug(st.run.Request)+"_summary.json")
	return writeFileAtomic(path, payload)
}

// writeCSVAtomic serializes the table to a temp file and renames it into
// place, so a failure mid-write never truncates a previously written file.
func writeCSVAtomic(path string, fields []model.FieldID, records []*model.Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".harvest-*.csv")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err := export.WriteCSV(tmp, fields, records); err != nil {
		return eris.Wrap(err, "serialize table")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "close temp file")
	}
	return eris.Wrap(os.Rename(tmp.Name(), path), "rename into place")
}

func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".harvest-*")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(payload); err != nil {
		return eris.Wrap(err, "write payload")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "close temp file")
	}
	return eris.Wrap(os.Rename(tmp.Name(), path), "rename into place")
}
