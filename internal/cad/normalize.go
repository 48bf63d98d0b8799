package cad

import (
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Normalize converts a payload into a typed row set. A nil payload or a zero
// count yields an empty set. Values that fail coercion are kept as missing;
// no record is ever dropped.
func Normalize(p *Payload, logger *slog.Logger) RowSet {
	if p == nil || p.Count == 0 {
		return RowSet{}
	}

	fields := append([]string(nil), p.Fields...)
	idx := fieldIndex(fields)

	rows := make([]Row, 0, len(p.Data))
	for i, rec := range p.Data {
		if len(rec) > len(fields) {
			logger.Warn("record has more values than fields, extra values dropped",
				"record_index", i,
				"values", len(rec),
				"fields", len(fields),
			)
		}

		cells := make([]Cell, len(fields))
		for j := range fields {
			if j < len(rec) {
				cells[j] = rec[j]
			} else {
				cells[j] = NullCell
			}
		}

		row := Row{Cells: cells}
		if j, ok := idx[FieldDesignation]; ok {
			row.Designation = cells[j].Value
		}
		if j, ok := idx[FieldDate]; ok {
			row.Date = parseApproachTime(cells[j])
			if !row.Date.Valid {
				logger.Debug("unparseable close-approach date", "record_index", i, "value", cells[j].Value)
			}
		}
		row.Distance = coerceDecimal(cells, idx, FieldDistance, i, logger)
		row.VRel = coerceDecimal(cells, idx, FieldVRel, i, logger)
		row.VInf = coerceDecimal(cells, idx, FieldVInf, i, logger)

		rows = append(rows, row)
	}

	return RowSet{Fields: fields, Rows: rows}
}

func fieldIndex(fields []string) map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := idx[f]; !dup {
			idx[f] = i
		}
	}
	return idx
}

func parseApproachTime(c Cell) Timestamp {
	if c.Null {
		return Timestamp{}
	}
	t, err := time.Parse(ApproachLayout, strings.TrimSpace(c.Value))
	if err != nil {
		return Timestamp{}
	}
	return Timestamp{Time: t, Valid: true}
}

func coerceDecimal(cells []Cell, idx map[string]int, field string, record int, logger *slog.Logger) decimal.NullDecimal {
	j, ok := idx[field]
	if !ok || cells[j].Null {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(cells[j].Value))
	if err != nil {
		logger.Debug("non-numeric value marked missing",
			"record_index", record,
			"field", field,
			"value", cells[j].Value,
		)
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
