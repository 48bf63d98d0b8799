package cad

import "strings"

// Body is a celestial body the provider can report close approaches to.
type Body struct {
	Name string // display name, e.g. "Jupiter"
	Code string // provider code, e.g. "Juptr"
}

// Bodies lists the supported bodies in display order.
var Bodies = []Body{
	{Name: "Mercury", Code: "Merc"},
	{Name: "Venus", Code: "Venus"},
	{Name: "Earth", Code: "Earth"},
	{Name: "Mars", Code: "Mars"},
	{Name: "Jupiter", Code: "Juptr"},
	{Name: "Saturn", Code: "Satrn"},
	{Name: "Uranus", Code: "Urnus"},
	{Name: "Neptune", Code: "Neptn"},
	{Name: "Moon", Code: "Moon"},
}

// DefaultBody is Earth.
var DefaultBody = Bodies[2]

// LookupBody resolves a display name or provider code, ignoring case.
func LookupBody(s string) (Body, bool) {
	s = strings.TrimSpace(s)
	for _, b := range Bodies {
		if strings.EqualFold(b.Name, s) || strings.EqualFold(b.Code, s) {
			return b, true
		}
	}
	return Body{}, false
}

// Unit is a distance unit token accepted by the provider.
type Unit string

const (
	UnitAU Unit = "AU" // astronomical units
	UnitLD Unit = "LD" // lunar distances
)

// Units lists the supported distance units.
var Units = []Unit{UnitAU, UnitLD}

// ParseUnit resolves a unit token, ignoring case.
func ParseUnit(s string) (Unit, bool) {
	for _, u := range Units {
		if strings.EqualFold(string(u), strings.TrimSpace(s)) {
			return u, true
		}
	}
	return "", false
}

// DefaultMaxDistance returns the default distance ceiling for unit.
func DefaultMaxDistance(u Unit) string {
	if u == UnitLD {
		return "10"
	}
	return "0.05"
}

// ObjectType selects which small-body category to query.
type ObjectType string

const (
	ObjectNEO   ObjectType = "neo"
	ObjectComet ObjectType = "comet"
	ObjectBoth  ObjectType = "both"
)

// ObjectTypes lists the supported object type filters.
var ObjectTypes = []ObjectType{ObjectNEO, ObjectComet, ObjectBoth}

// ParseObjectType resolves an object type filter, ignoring case.
func ParseObjectType(s string) (ObjectType, bool) {
	for _, t := range ObjectTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}
