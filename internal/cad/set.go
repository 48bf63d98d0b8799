package cad

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownParam is returned by Set for keys it does not recognize.
var ErrUnknownParam = errors.New("unknown parameter")

// ErrDateConflict is returned when one request names both an end date and a
// day count.
var ErrDateConflict = errors.New("date-max and days are mutually exclusive")

// ParamKeys lists the keys Set accepts, in the order ApplyParams applies
// them. unit precedes dist-max so an explicit distance wins over the unit
// default.
var ParamKeys = []string{"body", "date-min", "date-max", "days", "unit", "dist-max", "limit", "type"}

// Set updates one filter value from its textual form. Values are parsed but
// not range-checked; call Validate before searching.
//
// Changing the unit while the distance is still the old unit's default
// switches it to the new unit's default.
func (q *Query) Set(key, value string) error {
	value = strings.TrimSpace(value)

	switch key {
	case "body":
		b, ok := LookupBody(value)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownBody, value)
		}
		q.Body = b
	case "date-min":
		q.DateMin = value
	case "date-max":
		q.DateMax = value
	case "days":
		n, err := strconv.Atoi(strings.TrimPrefix(value, "+"))
		if err != nil {
			return fmt.Errorf("%w: days %q", ErrOffsetRange, value)
		}
		q.DateMax = "+" + strconv.Itoa(n)
	case "unit":
		u, ok := ParseUnit(value)
		if !ok {
			return fmt.Errorf("%w: got %q", ErrUnknownUnit, value)
		}
		if q.MaxDistance == "" || q.MaxDistance == DefaultMaxDistance(q.Unit) {
			q.MaxDistance = DefaultMaxDistance(u)
		}
		q.Unit = u
	case "dist-max":
		q.MaxDistance = value
	case "limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: got %q", ErrLimitRange, value)
		}
		q.Limit = n
	case "type":
		t, ok := ParseObjectType(value)
		if !ok {
			return fmt.Errorf("%w: got %q", ErrUnknownObjectType, value)
		}
		q.ObjectType = t
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParam, key)
	}
	return nil
}

// ApplyParams sets every recognized key present in get, in ParamKeys order.
// get is typically url.Values.Get.
func (q *Query) ApplyParams(get func(string) string) error {
	if err := CheckDateKeys(func(key string) bool { return get(key) != "" }); err != nil {
		return err
	}
	for _, key := range ParamKeys {
		v := get(key)
		if v == "" {
			continue
		}
		if err := q.Set(key, v); err != nil {
			return err
		}
	}
	return nil
}

// CheckDateKeys returns ErrDateConflict when present reports both date-max
// and days.
func CheckDateKeys(present func(key string) bool) error {
	if present("date-max") && present("days") {
		return ErrDateConflict
	}
	return nil
}

// ResolveOffset rewrites a "+N" DateMax as the calendar date N days after a
// calendar DateMin. The provider counts "+N" from today, so the rewrite is
// needed whenever the window does not start now.
func (q *Query) ResolveOffset() error {
	rest, ok := strings.CutPrefix(q.DateMax, "+")
	if !ok || q.DateMin == DateNow {
		return nil
	}
	start, err := time.Parse(DateLayout, q.DateMin)
	if err != nil {
		return fmt.Errorf("%w: date-min %q", ErrBadDate, q.DateMin)
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return fmt.Errorf("%w: date-max %q", ErrOffsetRange, q.DateMax)
	}
	end, err := EndDateFromOffset(start, n)
	if err != nil {
		return err
	}
	q.DateMax = end
	return nil
}
