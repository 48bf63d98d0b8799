package chart

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/star/closeapproach/internal/cad"
	"github.com/star/closeapproach/internal/session"
	"github.com/star/closeapproach/internal/trend"
)

func row(des string, day int, dist string) cad.Row {
	r := cad.Row{
		Designation: des,
		Date:        cad.Timestamp{Time: time.Date(2025, 1, 1+day, 0, 0, 0, 0, time.UTC), Valid: day >= 0},
		VRel:        decimal.NewNullDecimal(decimal.RequireFromString("7.5")),
	}
	if dist != "" {
		r.Distance = decimal.NewNullDecimal(decimal.RequireFromString(dist))
	}
	return r
}

func testSession(rows ...cad.Row) *session.Session {
	q := cad.DefaultQuery()
	q.Body = cad.Bodies[3]
	q.Unit = cad.UnitLD
	return &session.Session{ID: "s", Query: q, Rows: cad.RowSet{Fields: cad.CoreFields, Rows: rows}, HasResult: true}
}

func TestBuildLabelsAndPoints(t *testing.T) {
	sess := testSession(
		row("2025 AB", 0, "1.5"),
		row("2025 AC", 3, ""),
		row("undated", -1, "2"),
	)

	c := Build(sess, Options{})

	if c.Title != "Close Approaches to Mars" {
		t.Errorf("title = %q", c.Title)
	}
	if c.YLabel != "Distance (LD)" {
		t.Errorf("y label = %q", c.YLabel)
	}
	if !c.ReverseY {
		t.Error("expected reversed y axis")
	}
	if len(c.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(c.Points))
	}
	if c.Points[0].Y == nil || *c.Points[0].Y != 1.5 {
		t.Errorf("first y = %v, want 1.5", c.Points[0].Y)
	}
	if c.Points[1].Y != nil {
		t.Errorf("missing distance should plot as nil, got %v", *c.Points[1].Y)
	}
	if c.Points[0].VRel != "7.5" || c.Points[0].VInf != "" {
		t.Errorf("hover = %q/%q", c.Points[0].VRel, c.Points[0].VInf)
	}
	if c.Trend != nil || len(c.Warnings) != 0 {
		t.Errorf("unexpected trend %+v warnings %v", c.Trend, c.Warnings)
	}
}

func TestBuildTrendLine(t *testing.T) {
	sess := testSession(row("a", 0, "1"), row("b", 2, "2"), row("c", 4, "3"))

	c := Build(sess, Options{TrendLine: true, Capability: trend.Resolve(true)})

	if c.Trend == nil {
		t.Fatalf("expected trend segment, warnings %v", c.Warnings)
	}
	if math.Abs(c.Trend.Y0-1) > 1e-9 || math.Abs(c.Trend.Y1-3) > 1e-9 {
		t.Errorf("segment = %+v, want 1 -> 3", c.Trend)
	}
	if !c.Trend.X1.Equal(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("x1 = %v", c.Trend.X1)
	}
}

func TestBuildTrendLineDisabled(t *testing.T) {
	sess := testSession(row("a", 0, "1"), row("b", 2, "2"))

	c := Build(sess, Options{TrendLine: true, Capability: trend.Resolve(false)})

	if c.Trend != nil {
		t.Error("trend drawn while capability disabled")
	}
	if len(c.Points) != 2 {
		t.Errorf("points = %d, want 2", len(c.Points))
	}
	if len(c.Warnings) != 1 || !strings.Contains(c.Warnings[0], "disabled") {
		t.Errorf("warnings = %v", c.Warnings)
	}
}

func TestBuildTrendLineTooFewPoints(t *testing.T) {
	c := Build(testSession(row("a", 0, "1")), Options{TrendLine: true, Capability: trend.Resolve(true)})

	if c.Trend != nil || len(c.Warnings) != 1 {
		t.Errorf("trend %+v warnings %v", c.Trend, c.Warnings)
	}
}
