// Package export serializes flat rows into spreadsheet downloads.
package export

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FileName returns "<prefix>_<YYYY-MM-DD>.xlsx" using the UTC date of now.
func FileName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, now.UTC().Format("2006-01-02"))
}

// Columns returns the union of the rows' field names in order of first
// appearance.
func Columns(rows []store.Fields) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for _, f := range row {
			if !seen[f.Name] {
				seen[f.Name] = true
				cols = append(cols, f.Name)
			}
		}
	}
	return cols
}

// Write renders rows as a single-sheet workbook. The header row is
// Columns(rows); a row lacking a column leaves that cell empty.
func Write(w io.Writer, sheet string, rows []store.Fields) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	cols := Columns(rows)
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, row := range rows {
		values := make([]interface{}, len(cols))
		for i, c := range cols {
			if v, ok := row.Get(c); ok {
				values[i] = cellValue(v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, float64, float32, int, int32, int64:
		return t
	default:
		return store.Stringify(v)
	}
}

// Attachment writes rows as an xlsx download named FileName(prefix, now).
func Attachment(c echo.Context, prefix, sheet string, rows []store.Fields, now time.Time) error {
	var buf bytes.Buffer
	if err := Write(&buf, sheet, rows); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, FileName(prefix, now)))
	return c.Blob(http.StatusOK, ContentType, buf.Bytes())
}

// Records flattens records into rows with every stored field, id first and
// createdAt last, for collections that export as-is.
func Records(records []store.Record) []store.Fields {
	rows := make([]store.Fields, 0, len(records))
	for _, r := range records {
		row := make(store.Fields, 0, len(r.Fields)+2)
		row = append(row, store.Field{Name: "id", Value: r.ID})
		for _, f := range r.Fields {
			row = append(row, store.Field{Name: f.Name, Value: f.Value})
		}
		if r.CreatedAt != "" {
			row = append(row, store.Field{Name: "createdAt", Value: r.CreatedAt})
		}
		rows = append(rows, row)
	}
	return rows
}
