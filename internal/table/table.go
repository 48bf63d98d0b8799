// Package table renders row sets as fixed-width text for terminals.
package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/star/closeapproach/internal/cad"
)

// TimeLayout formats close-approach times in tables.
const TimeLayout = "2006-01-02 15:04"

// Missing is printed for values the provider omitted or that failed to parse.
const Missing = "-"

// Headers returns the column titles for rows measured in unit.
func Headers(unit cad.Unit) []string {
	return []string{
		"Designation",
		"Date",
		fmt.Sprintf("Distance (%s)", unit),
		"Relative Velocity (km/s)",
		"Infinity Velocity (km/s)",
	}
}

// Records returns the display text of every row, one slice per row.
func Records(rows cad.RowSet) [][]string {
	out := make([][]string, 0, rows.Len())
	for _, r := range rows.Rows {
		date := Missing
		if r.Date.Valid {
			date = r.Date.Time.Format(TimeLayout)
		}
		des := r.Designation
		if des == "" {
			des = Missing
		}
		out = append(out, []string{des, date, text(r.Distance), text(r.VRel), text(r.VInf)})
	}
	return out
}

// Render writes rows as an aligned table. Widths account for East Asian
// wide characters so columns line up in a terminal.
func Render(w io.Writer, unit cad.Unit, rows cad.RowSet) error {
	header := Headers(unit)
	records := Records(rows)

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, rec := range records {
		for i, v := range rec {
			if n := runewidth.StringWidth(v); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	writeLine(&sb, header, widths)
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	writeLine(&sb, rule, widths)
	for _, rec := range records {
		writeLine(&sb, rec, widths)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeLine(sb *strings.Builder, cols []string, widths []int) {
	for i, v := range cols {
		if i > 0 {
			sb.WriteString("  ")
		}
		if i == len(cols)-1 {
			sb.WriteString(v)
			continue
		}
		sb.WriteString(runewidth.FillRight(v, widths[i]))
	}
	sb.WriteByte('\n')
}

func text(d decimal.NullDecimal) string {
	if !d.Valid {
		return Missing
	}
	return d.Decimal.String()
}
