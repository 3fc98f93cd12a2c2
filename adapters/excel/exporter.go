package excel

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"dmriqc/domain/report"
	"dmriqc/internal/errors"
	"dmriqc/ports"
)

const maxSheetName = 31

// Exporter writes one worksheet per metric section: the subject table, the
// population statistics and the flagged subjects.
type Exporter struct{}

var _ ports.TableExporter = Exporter{}

// Export writes the workbook to path
func (Exporter) Export(_ context.Context, r *report.Report, path string) error {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool)
	sheets := 0
	for _, sec := range r.Sections {
		if sec.Summary == nil {
			continue
		}
		name := sheetName(sec.Name, used)
		if sheets == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return errors.Wrapf(err, "failed to name sheet %s", name)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "failed to add sheet %s", name)
		}
		sheets++

		row := 1
		var err error
		if row, err = writeTable(f, name, row, sec.Summary); err != nil {
			return err
		}
		if sec.Population != nil {
			if row, err = writeTable(f, name, row+1, sec.Population); err != nil {
				return err
			}
		}
		if sec.Warnings != nil {
			if err := writeWarnings(f, name, row+1, sec.Warnings); err != nil {
				return err
			}
		}
	}
	if sheets == 0 {
		if err := f.SetCellValue("Sheet1", "A1", "no metric sections"); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	log.Printf("[ExcelExporter] wrote %s (%d sheets) in %.2fms", path, sheets, float64(time.Since(start).Nanoseconds())/1e6)
	return nil
}

func writeTable(f *excelize.File, sheet string, row int, t *report.DisplayTable) (int, error) {
	header := make([]interface{}, 0, len(t.Columns)+1)
	header = append(header, t.Index)
	for _, c := range t.Columns {
		header = append(header, c)
	}
	if err := setRow(f, sheet, row, header); err != nil {
		return row, err
	}
	for _, r := range t.Rows {
		row++
		cells := make([]interface{}, 0, len(r.Cells)+1)
		cells = append(cells, r.Label)
		for _, c := range r.Cells {
			cells = append(cells, c)
		}
		if err := setRow(f, sheet, row, cells); err != nil {
			return row, err
		}
	}
	return row + 1, nil
}

func writeWarnings(f *excelize.File, sheet string, row int, w *report.Warnings) error {
	if err := setRow(f, sheet, row, []interface{}{"nb_warnings", w.NbWarnings}); err != nil {
		return err
	}
	for _, c := range w.Columns {
		row++
		if err := setRow(f, sheet, row, []interface{}{c, strings.Join(w.Flagged[c], ", ")}); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrapf(err, "failed to write row %d of %s", row, sheet)
	}
	return nil
}

// sheetName strips the characters Excel forbids and keeps names unique
func sheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if clean == "" {
		clean = "Sheet"
	}
	if len(clean) > maxSheetName {
		clean = clean[:maxSheetName]
	}
	base, n := clean, 2
	for used[strings.ToLower(clean)] {
		suffix := "_" + string(rune('0'+n%10))
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		clean = base + suffix
		n++
	}
	used[strings.ToLower(clean)] = true
	return clean
}
