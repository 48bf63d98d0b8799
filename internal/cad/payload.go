package cad

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload is the provider's tabular response, decoded but not interpreted.
type Payload struct {
	Signature map[string]string `json:"signature,omitempty"`
	Count     Count             `json:"count"`
	Fields    []string          `json:"fields"`
	Data      [][]Cell          `json:"data"`

	raw []byte
}

// Raw returns the response body the payload was decoded from.
func (p *Payload) Raw() []byte {
	if p == nil {
		return nil
	}
	return p.raw
}

// DecodePayload decodes a provider response body.
func DecodePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	p.raw = body
	return &p, nil
}

// Count is the record count. The provider sends it as a string, but a plain
// JSON number is accepted too.
type Count int

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid count %s: %w", b, err)
	}
	*c = Count(n)
	return nil
}

// Cell is one positional value of a record. Null distinguishes a JSON null
// from an empty string.
type Cell struct {
	Value string
	Null  bool
}

// NullCell is the cell used for JSON null and for padding short records.
var NullCell = Cell{Null: true}

// StringCell returns a non-null cell holding s.
func StringCell(s string) Cell {
	return Cell{Value: s}
}

// UnmarshalJSON implements json.Unmarshaler. Strings are kept verbatim,
// numbers and booleans by their literal text.
func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*c = NullCell
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = StringCell(s)
	default:
		*c = StringCell(string(b))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Null {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}
