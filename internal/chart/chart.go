// Package chart turns a session's rows into a scatter plot description the
// web UI and CLI can render.
package chart

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/star/closeapproach/internal/session"
	"github.com/star/closeapproach/internal/trend"
)

// Options controls optional chart elements.
type Options struct {
	TrendLine  bool
	Capability trend.Capability
}

// Point is one plotted close approach. Y is nil when the distance is missing.
type Point struct {
	X           time.Time `json:"x"`
	Y           *float64  `json:"y"`
	Designation string    `json:"des"`
	VRel        string    `json:"v_rel"`
	VInf        string    `json:"v_inf"`
}

// Segment is a straight line between two points.
type Segment struct {
	X0       time.Time `json:"x0"`
	Y0       float64   `json:"y0"`
	X1       time.Time `json:"x1"`
	Y1       float64   `json:"y1"`
	Slope    float64   `json:"slope_per_day"`
	RSquared float64   `json:"r_squared"`
}

// Chart is a JSON-ready scatter plot.
type Chart struct {
	Title    string   `json:"title"`
	XLabel   string   `json:"x_label"`
	YLabel   string   `json:"y_label"`
	ReverseY bool     `json:"reverse_y"`
	Points   []Point  `json:"points"`
	Trend    *Segment `json:"trend,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Build describes the rows of sess as a scatter of distance over time.
// Rows without a valid date are left out. Closer approaches plot higher.
func Build(sess *session.Session, opts Options) Chart {
	c := Chart{
		Title:    "Close Approaches to " + sess.BodyName(),
		XLabel:   "Close-Approach Date",
		YLabel:   fmt.Sprintf("Distance (%s)", sess.Unit()),
		ReverseY: true,
		Points:   make([]Point, 0, sess.Rows.Len()),
	}

	for _, r := range sess.Rows.Rows {
		if !r.Date.Valid {
			continue
		}
		p := Point{
			X:           r.Date.Time,
			Designation: r.Designation,
			VRel:        text(r.VRel),
			VInf:        text(r.VInf),
		}
		if r.Distance.Valid {
			y := r.Distance.Decimal.InexactFloat64()
			p.Y = &y
		}
		c.Points = append(c.Points, p)
	}

	if !opts.TrendLine {
		return c
	}
	if !opts.Capability.Enabled {
		c.Warnings = append(c.Warnings, "trend line unavailable: "+opts.Capability.Reason)
		return c
	}

	pts := trend.Points(sess.Rows)
	line, err := trend.Fit(pts)
	if err != nil {
		c.Warnings = append(c.Warnings, "trend line unavailable: "+err.Error())
		return c
	}

	first, last := pts[0].T, pts[0].T
	for _, p := range pts[1:] {
		if p.T.Before(first) {
			first = p.T
		}
		if p.T.After(last) {
			last = p.T
		}
	}
	c.Trend = &Segment{
		X0:       first,
		Y0:       line.At(first),
		X1:       last,
		Y1:       line.At(last),
		Slope:    line.Slope,
		RSquared: line.RSquared,
	}
	return c
}

func text(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
