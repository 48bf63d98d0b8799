package table

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/star/closeapproach/internal/cad"
)

func TestHeaders(t *testing.T) {
	h := Headers(cad.UnitLD)
	if h[2] != "Distance (LD)" {
		t.Errorf("distance header = %q", h[2])
	}
	if len(h) != 5 {
		t.Errorf("columns = %d, want 5", len(h))
	}
}

func TestRender(t *testing.T) {
	rows := cad.RowSet{Rows: []cad.Row{
		{
			Designation: "2025 AB",
			Date:        cad.Timestamp{Time: time.Date(2025, 1, 15, 3, 20, 0, 0, time.UTC), Valid: true},
			Distance:    decimal.NewNullDecimal(decimal.RequireFromString("0.0123")),
			VRel:        decimal.NewNullDecimal(decimal.RequireFromString("7.5")),
		},
		{Designation: "小惑星"},
	}}

	var sb strings.Builder
	if err := Render(&sb, cad.UnitAU, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4:\n%s", len(lines), sb.String())
	}
	if !strings.HasPrefix(lines[0], "Designation  Date") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "2025-01-15 03:20") || !strings.Contains(lines[2], "0.0123") {
		t.Errorf("row = %q", lines[2])
	}

	// Date column starts at the same display offset on every line.
	want := strings.Index(lines[0], "Date")
	for _, l := range lines[2:] {
		prefix := runewidth.Truncate(l, want, "")
		if runewidth.StringWidth(prefix) != want {
			t.Errorf("misaligned line %q", l)
		}
		rest := l[len(prefix):]
		if strings.HasPrefix(rest, " ") {
			t.Errorf("date column shifted in %q", l)
		}
	}
	if !strings.Contains(lines[3], Missing) {
		t.Errorf("missing values not marked: %q", lines[3])
	}
}

func TestRenderEmpty(t *testing.T) {
	var sb strings.Builder
	if err := Render(&sb, cad.UnitAU, cad.RowSet{}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(sb.String(), "\n"); n != 2 {
		t.Errorf("lines = %d, want header and rule", n)
	}
}
