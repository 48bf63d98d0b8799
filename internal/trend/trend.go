// Package trend fits an ordinary least squares line to distance over time.
package trend

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/star/closeapproach/internal/cad"
)

// ErrTooFewPoints is returned when fewer than two distinct times have a
// distance.
var ErrTooFewPoints = errors.New("trend line needs at least two points at distinct times")

// Capability records whether trend lines are offered. It is resolved once at
// startup and passed to whatever renders charts.
type Capability struct {
	Enabled bool
	Reason  string // why the capability is disabled; empty when enabled
}

// Resolve returns the capability for the configured feature switch.
func Resolve(enabled bool) Capability {
	if !enabled {
		return Capability{Reason: "trend line feature is disabled"}
	}
	return Capability{Enabled: true}
}

// Point is one (time, distance) sample.
type Point struct {
	T time.Time
	Y float64
}

// Line is a fitted trend line. Slope is in distance units per day.
type Line struct {
	Origin    time.Time // x = 0
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
}

// At evaluates the line at t.
func (l Line) At(t time.Time) float64 {
	return l.Intercept + l.Slope*days(t.Sub(l.Origin))
}

// Points extracts samples from rows, skipping rows with a missing date or
// distance.
func Points(rows cad.RowSet) []Point {
	pts := make([]Point, 0, rows.Len())
	for _, r := range rows.Rows {
		if !r.Date.Valid || !r.Distance.Valid {
			continue
		}
		pts = append(pts, Point{T: r.Date.Time, Y: r.Distance.Decimal.InexactFloat64()})
	}
	return pts
}

// Fit computes the least squares line through pts, with x measured in days
// since the earliest point.
func Fit(pts []Point) (Line, error) {
	if len(pts) < 2 {
		return Line{}, ErrTooFewPoints
	}

	origin := pts[0].T
	for _, p := range pts[1:] {
		if p.T.Before(origin) {
			origin = p.T
		}
	}

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	distinct := false
	for i, p := range pts {
		xs[i] = days(p.T.Sub(origin))
		ys[i] = p.Y
		if xs[i] != xs[0] {
			distinct = true
		}
	}
	if !distinct {
		return Line{}, ErrTooFewPoints
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return Line{
		Origin:    origin,
		Slope:     beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(xs, ys, nil, alpha, beta),
		N:         len(pts),
	}, nil
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}
