package cad

import (
	"bytes"
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// KeyFunc returns the identity of a row for duplicate removal. Rows with
// byte-equal keys are duplicates.
type KeyFunc func(fields []string, r Row) []byte

// FullRowKey identifies a row by every field value, so only rows that agree
// on all fields are duplicates.
func FullRowKey(fields []string, r Row) []byte {
	var buf []byte
	for i := range fields {
		c := NullCell
		if i < len(r.Cells) {
			c = r.Cells[i]
		}
		buf = appendCell(buf, c)
	}
	return buf
}

// IdentityKey identifies a row by designation and close-approach time, so
// two rows for the same event are duplicates even when other fields differ.
func IdentityKey(_ []string, r Row) []byte {
	buf := appendCell(nil, StringCell(r.Designation))
	if r.Date.Valid {
		return binary.AppendVarint(append(buf, 1), r.Date.Time.Unix())
	}
	return append(buf, 0)
}

func appendCell(buf []byte, c Cell) []byte {
	if c.Null {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	buf = binary.AppendUvarint(buf, uint64(len(c.Value)))
	return append(buf, c.Value...)
}

// Combine concatenates a and b and drops rows of b that duplicate an earlier
// row on every field. All rows of a are kept in order.
func Combine(a, b RowSet) RowSet {
	return CombineBy(a, b, FullRowKey)
}

// CombineBy is Combine with a caller-chosen identity.
func CombineBy(a, b RowSet, key KeyFunc) RowSet {
	fields := a.Fields
	if len(fields) == 0 {
		fields = b.Fields
	}

	out := RowSet{
		Fields: append([]string(nil), fields...),
		Rows:   make([]Row, 0, len(a.Rows)+len(b.Rows)),
	}
	seen := make(map[[2]uint64][][]byte, len(a.Rows)+len(b.Rows))

	for _, r := range a.Rows {
		k := key(fields, r)
		fp := fingerprint(k)
		seen[fp] = append(seen[fp], k)
		out.Rows = append(out.Rows, r)
	}

	for _, r := range project(b, fields) {
		k := key(fields, r)
		fp := fingerprint(k)
		if containsKey(seen[fp], k) {
			continue
		}
		seen[fp] = append(seen[fp], k)
		out.Rows = append(out.Rows, r)
	}

	return out
}

func fingerprint(k []byte) [2]uint64 {
	h1, h2 := murmur3.Sum128(k)
	return [2]uint64{h1, h2}
}

func containsKey(keys [][]byte, k []byte) bool {
	for _, existing := range keys {
		if bytes.Equal(existing, k) {
			return true
		}
	}
	return false
}

// project rearranges rs's cells into the order of fields. Fields rs lacks
// become null cells.
func project(rs RowSet, fields []string) []Row {
	if sameFields(rs.Fields, fields) {
		return rs.Rows
	}
	idx := fieldIndex(rs.Fields)
	rows := make([]Row, len(rs.Rows))
	for i, r := range rs.Rows {
		cells := make([]Cell, len(fields))
		for j, f := range fields {
			cells[j] = NullCell
			if k, ok := idx[f]; ok && k < len(r.Cells) {
				cells[j] = r.Cells[k]
			}
		}
		r.Cells = cells
		rows[i] = r
	}
	return rows
}

func sameFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
