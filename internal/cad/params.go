package cad

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DateLayout is the calendar date format the provider accepts.
	DateLayout = "2006-01-02"

	// DateNow is the provider's literal for the current date.
	DateNow = "now"

	DefaultLimit  = 100
	MaxLimit      = 1000
	DefaultDays   = 60
	MaxOffsetDays = 36525 // 100 years
)

// Validation errors returned by Query.Validate.
var (
	ErrUnknownBody       = errors.New("unknown celestial body")
	ErrUnknownUnit       = errors.New("distance unit must be AU or LD")
	ErrUnknownObjectType = errors.New("object type must be neo, comet or both")
	ErrLimitRange        = fmt.Errorf("limit must be between 1 and %d", MaxLimit)
	ErrBadDistance       = errors.New("max distance must be a positive decimal number")
	ErrBadDate           = errors.New("invalid date")
	ErrDateOrder         = errors.New("start date is after end date")
	ErrOffsetRange       = fmt.Errorf("day offset must be between 1 and %d", MaxOffsetDays)
)

// Query holds the filter values for one close-approach search.
type Query struct {
	Body        Body
	DateMin     string // YYYY-MM-DD or "now"
	DateMax     string // YYYY-MM-DD or "+N" days
	MaxDistance string // decimal magnitude, e.g. "0.05"
	Unit        Unit
	Limit       int
	ObjectType  ObjectType
}

// DefaultQuery returns the search the dashboard starts with: Earth, the next
// 60 days, 0.05 AU, 100 NEO results.
func DefaultQuery() Query {
	return Query{
		Body:        DefaultBody,
		DateMin:     DateNow,
		DateMax:     "+" + strconv.Itoa(DefaultDays),
		MaxDistance: DefaultMaxDistance(UnitAU),
		Unit:        UnitAU,
		Limit:       DefaultLimit,
		ObjectType:  ObjectNEO,
	}
}

// BuildParams translates q into the provider's query-string vocabulary.
// It performs no validation; ObjectBoth emits no category flag, callers are
// expected to Split such queries first.
func BuildParams(q Query) url.Values {
	params := url.Values{}
	params.Set("body", q.Body.Code)
	params.Set("date-min", q.DateMin)
	params.Set("date-max", q.DateMax)
	params.Set("dist-max", q.MaxDistance+string(q.Unit))
	params.Set("limit", strconv.Itoa(q.Limit))

	switch q.ObjectType {
	case ObjectNEO:
		params.Set("neo", "true")
	case ObjectComet:
		params.Set("comet", "true")
	}

	return params
}

// Split expands a "both" query into one query per category, neo first.
// Any other query is returned as a single-element slice.
func (q Query) Split() []Query {
	if q.ObjectType != ObjectBoth {
		return []Query{q}
	}
	neo, comet := q, q
	neo.ObjectType = ObjectNEO
	comet.ObjectType = ObjectComet
	return []Query{neo, comet}
}

// Validate checks q against the ranges the dashboard enforces before a
// search is issued. BuildParams does not call it.
func (q Query) Validate() error {
	if _, ok := LookupBody(q.Body.Code); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBody, q.Body.Code)
	}
	if _, ok := ParseUnit(string(q.Unit)); !ok {
		return fmt.Errorf("%w: got %q", ErrUnknownUnit, q.Unit)
	}
	if _, ok := ParseObjectType(string(q.ObjectType)); !ok {
		return fmt.Errorf("%w: got %q", ErrUnknownObjectType, q.ObjectType)
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return fmt.Errorf("%w: got %d", ErrLimitRange, q.Limit)
	}

	d, err := decimal.NewFromString(strings.TrimSpace(q.MaxDistance))
	if err != nil || !d.IsPositive() {
		return fmt.Errorf("%w: got %q", ErrBadDistance, q.MaxDistance)
	}

	minDate, minIsDate, err := parseDateMin(q.DateMin)
	if err != nil {
		return err
	}
	maxDate, maxIsDate, err := parseDateMax(q.DateMax)
	if err != nil {
		return err
	}
	if minIsDate && maxIsDate && minDate.After(maxDate) {
		return fmt.Errorf("%w: %s > %s", ErrDateOrder, q.DateMin, q.DateMax)
	}

	return nil
}

func parseDateMin(s string) (time.Time, bool, error) {
	if s == DateNow {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: date-min %q", ErrBadDate, s)
	}
	return t, true, nil
}

func parseDateMax(s string) (time.Time, bool, error) {
	if s == DateNow {
		return time.Time{}, false, nil
	}
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > MaxOffsetDays {
			return time.Time{}, false, fmt.Errorf("%w: date-max %q", ErrOffsetRange, s)
		}
		return time.Time{}, false, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: date-max %q", ErrBadDate, s)
	}
	return t, true, nil
}

// EndDateFromOffset returns the calendar date days after start, formatted
// for date-max.
func EndDateFromOffset(start time.Time, days int) (string, error) {
	if days < 1 || days > MaxOffsetDays {
		return "", fmt.Errorf("%w: got %d", ErrOffsetRange, days)
	}
	y, m, d := start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days).Format(DateLayout), nil
}
