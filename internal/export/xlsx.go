package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/listing-harvester/internal/model"
)

// WriteXLSX renders the same table WriteCSV produces into an .xlsx workbook
// at path, one sheet named "listings".
func WriteXLSX(path string, fields []model.FieldID, records []*model.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("listings")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, field := range fields {
		header.AddCell().Value = string(field)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		for _, field := range fields {
			cell := row.AddCell()
			if v, ok := rec.Get(field); ok {
				cell.Value = v.Cell()
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}

// RowsFromCSVCells rebuilds field/record inputs from parsed CSV rows
// (header first), used when converting an exported table to XLSX.
func RowsFromCSVCells(rows [][]string) ([]model.FieldID, []*model.Record) {
	if len(rows) == 0 {
		return nil, nil
	}
	fields := make([]model.FieldID, len(rows[0]))
	for i, h := range rows[0] {
		fields[i] = model.FieldID(h)
	}

	records := make([]*model.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := model.NewRecord("", 0)
		for i, cell := range row {
			if i < len(fields) && cell != "" {
				rec.Set(fields[i], model.Text(cell))
			}
		}
		records = append(records, rec)
	}
	return fields, records
}
