// Package report renders waitlist history and daily counters as Excel
// workbooks for staff export.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nicoespa/MesaYa/internal/models"
)

// sheetWriter is a thin cursor over one excelize sheet.
type sheetWriter struct {
	file    *excelize.File
	sheet   string
	row     int
	started bool
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	if len(name) > 31 {
		name = name[:31]
	}
	if !w.started {
		w.file.SetSheetName("Sheet1", name)
		w.started = true
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	if err := w.writeRow(toAny(columns)); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.row-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
		_ = w.file.SetCellStyle(w.sheet, startCell, endCell, style)
	}
	return nil
}

func (w *sheetWriter) writeRow(row []any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, val); err != nil {
			return err
		}
	}
	w.row++
	return nil
}

func (w *sheetWriter) save(out io.Writer) error {
	return w.file.Write(out)
}

func (w *sheetWriter) close() error {
	return w.file.Close()
}

func toAny(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

const timeLayout = "2006-01-02 15:04"

// WriteHistory streams an xlsx workbook with one sheet of finished
// parties and one of daily counters.
func WriteHistory(out io.Writer, parties []models.Party, daily []models.MetricsDaily) error {
	w := newSheetWriter()
	defer w.close()

	if err := w.addSheet("Historial"); err != nil {
		return err
	}
	header := []string{"Nombre", "Teléfono", "Personas", "Estado", "Anotado", "Avisado", "Sentado", "Notas"}
	if err := w.writeHeader(header); err != nil {
		return err
	}
	for _, p := range parties {
		row := []any{
			p.Name,
			p.Phone,
			p.Size,
			string(p.State),
			p.CreatedAt.Format(timeLayout),
			formatStamp(p.NotifiedAt),
			formatStamp(p.SeatedAt),
			p.Notes,
		}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}

	if err := w.addSheet("Métricas diarias"); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"Día", "Sentados", "Ausentes", "Cubiertos"}); err != nil {
		return err
	}
	for _, d := range daily {
		if err := w.writeRow([]any{d.Day, d.Seated, d.NoShows, d.Covers}); err != nil {
			return err
		}
	}

	return w.save(out)
}

// Filename builds the export attachment name for a restaurant.
func Filename(restaurant *models.Restaurant, day string) string {
	return fmt.Sprintf("mesaya-%s-%s.xlsx", restaurant.Slug, day)
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}
