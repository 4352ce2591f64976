// Package export writes the weekly incident spreadsheet the operations
// leads review on Mondays.
package export

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"incidentbot/internal/storage"
)

var header = []string{
	"Folio", "Departamento", "Lugar", "Descripcion", "Estado",
	"Prioridad", "Reportado", "Actualizado", "Notas",
}

// WeeklyReport exports incidents created in [from, to) to an xlsx file under
// dir and returns the written path. An empty week still produces a file with
// the header row, so the Monday review always has an artifact.
func WeeklyReport(db *sql.DB, dir string, from, to time.Time) (string, error) {
	incidents, err := storage.ListIncidentsByDateRange(db, from, to)
	if err != nil {
		return "", fmt.Errorf("load incidents: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Incidentes"
	f.SetSheetName("Sheet1", sheet)

	for col, title := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, title)
	}
	for row, inc := range incidents {
		values := []any{
			inc.Folio,
			string(inc.Department),
			inc.PlaceLabel,
			inc.Description,
			string(inc.Status),
			inc.Priority,
			inc.CreatedAt.Format("2006-01-02 15:04"),
			inc.UpdatedAt.Format("2006-01-02 15:04"),
			inc.Notes,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "A", "B", 18)
	f.SetColWidth(sheet, "C", "D", 36)
	f.SetColWidth(sheet, "I", "I", 40)

	path := filepath.Join(dir, fmt.Sprintf("incidentes_%s.xlsx", from.Format("2006-01-02")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}
	log.Printf("export wrote %s incidents=%d", path, len(incidents))
	return path, nil
}
