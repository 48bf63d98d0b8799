package cad

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider field names the normalizer interprets.
const (
	FieldDesignation = "des"
	FieldDate        = "cd"
	FieldDistance    = "dist"
	FieldVRel        = "v_rel"
	FieldVInf        = "v_inf"
)

// CoreFields is the presentation column order: designation, date, distance,
// relative velocity, infinity velocity.
var CoreFields = []string{FieldDesignation, FieldDate, FieldDistance, FieldVRel, FieldVInf}

// ApproachLayout is the provider's close-approach time format.
const ApproachLayout = "2006-Jan-02 15:04"

// Timestamp is a close-approach time. Valid is false when the provider
// value could not be parsed.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// Row is one close-approach event.
type Row struct {
	Designation string
	Date        Timestamp
	Distance    decimal.NullDecimal // in the unit of the query
	VRel        decimal.NullDecimal // km/s
	VInf        decimal.NullDecimal // km/s

	// Cells holds every provider value in field order, including the ones
	// interpreted above.
	Cells []Cell
}

// RowSet is an ordered sequence of rows sharing one field list.
type RowSet struct {
	Fields []string
	Rows   []Row
}

// Len returns the number of rows.
func (rs RowSet) Len() int {
	return len(rs.Rows)
}

// Empty reports whether the set holds no rows.
func (rs RowSet) Empty() bool {
	return len(rs.Rows) == 0
}

// Cell returns the raw value of field for row i.
func (rs RowSet) Cell(i int, field string) (Cell, bool) {
	for j, f := range rs.Fields {
		if f == field {
			if j < len(rs.Rows[i].Cells) {
				return rs.Rows[i].Cells[j], true
			}
			return NullCell, true
		}
	}
	return Cell{}, false
}
