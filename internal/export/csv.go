// Package export serializes row sets for download: CSV to a writer, to a
// local file, or to an S3 bucket.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/natefinch/atomic"
	"github.com/shopspring/decimal"

	"github.com/star/closeapproach/internal/cad"
)

// DefaultFilename is the suggested name for downloaded exports.
const DefaultFilename = "close_approaches_data.csv"

// ContentType is the MIME type of exported files.
const ContentType = "text/csv; charset=utf-8"

// TimeLayout formats close-approach times in exported files.
const TimeLayout = "2006-01-02 15:04:05"

// WriteCSV writes rows as UTF-8 CSV with the columns des, cd, dist, v_rel,
// v_inf. Missing values are written as empty cells; other provider fields
// are not exported.
func WriteCSV(w io.Writer, rows cad.RowSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cad.CoreFields); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, r := range rows.Rows {
		date := ""
		if r.Date.Valid {
			date = r.Date.Time.Format(TimeLayout)
		}
		record := []string{
			r.Designation,
			date,
			decimalText(r.Distance),
			decimalText(r.VRel),
			decimalText(r.VInf),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Bytes renders rows as CSV in memory.
func Bytes(rows cad.RowSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveFile writes rows as CSV to path, replacing any existing file
// atomically.
func SaveFile(path string, rows cad.RowSet) error {
	data, err := Bytes(rows)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func decimalText(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
