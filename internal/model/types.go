package model

import (
	"fmt"
	"strings"
)

// Direction identifies which half of the board an entry belongs to.
// The LED location table tags every row with one of two opposing
// directions; a run only ever processes one of them at a time.
type Direction string

const (
	// DirectionNorth selects northbound entries ("North" in the input table).
	DirectionNorth Direction = "North"

	// DirectionSouth selects southbound entries ("South" in the input table).
	DirectionSouth Direction = "South"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks whether the Direction value is one of the two
// predefined directions.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionNorth, DirectionSouth:
		return true
	default:
		return false
	}
}

// Opposite returns the other direction. It is only meaningful for valid
// directions; an invalid direction is returned unchanged.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionNorth:
		return DirectionSouth
	case DirectionSouth:
		return DirectionNorth
	default:
		return d
	}
}

// ParseDirection converts a string to a Direction. Matching is case
// insensitive so that CLI flags like "north" and table cells like "North"
// resolve to the same value.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north":
		return DirectionNorth, nil
	case "south":
		return DirectionSouth, nil
	default:
		return "", fmt.Errorf("invalid direction: %q (valid: north, south)", s)
	}
}

// MetricKind selects which speed reading is requested from the upstream
// provider.
type MetricKind string

const (
	// MetricCurrent requests the instantaneous speed.
	MetricCurrent MetricKind = "current"

	// MetricTypical requests the typical (free-flow) speed.
	MetricTypical MetricKind = "typical"
)

// String returns the string representation of MetricKind.
func (k MetricKind) String() string {
	return string(k)
}

// IsValid checks whether the MetricKind value is one of the predefined kinds.
func (k MetricKind) IsValid() bool {
	return k == MetricCurrent || k == MetricTypical
}

// SpecialCategory is the reserved freeway label for LEDs that are
// deliberately excluded from speed lookups.
const SpecialCategory = "Special"

// Entry is one row of the LED location table.
//
// Optional upstream fields are pointers or empty strings: a nil Latitude or
// Longitude, an empty Tile or an empty OpenLR means the cell was blank in the
// input and the corresponding speed source cannot be used for this entry.
type Entry struct {
	// Index is the board index (LED number). Always positive.
	Index int `json:"index"`

	// Direction is the half of the board this LED belongs to.
	Direction Direction `json:"direction"`

	// Category is the freeway label. The value "Special" excludes the
	// entry from speed lookups.
	Category string `json:"category"`

	// Latitude and Longitude locate the road segment for the segment source.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Tile is the "z/x/y" identifier for the tile source.
	Tile string `json:"tile,omitempty"`

	// OpenLR is the upstream reference code the segment source must echo.
	OpenLR string `json:"openLr,omitempty"`

	// Reference points at another index whose query this entry shares.
	// Zero means the entry is not an alias.
	Reference int `json:"reference,omitempty"`
}

// IsAlias reports whether the entry borrows another entry's query.
func (e *Entry) IsAlias() bool {
	return e.Reference != 0
}

// IsSpecial reports whether the entry is deliberately excluded.
func (e *Entry) IsSpecial() bool {
	return e.Category == SpecialCategory
}

// HasCoordinates reports whether both latitude and longitude are present.
func (e *Entry) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// CoordinatesString formats the coordinates for diagnostics, or "-" when
// either one is missing.
func (e *Entry) CoordinatesString() string {
	if !e.HasCoordinates() {
		return "-"
	}
	return fmt.Sprintf("%g,%g", *e.Latitude, *e.Longitude)
}

// CanonicalTarget is the entry chosen to represent one network query, plus
// every board index bound to it.
//
// Indices always starts with the representative's own index, followed by the
// aliasing indices in the order they were encountered in the input.
type CanonicalTarget struct {
	Entry   Entry `json:"entry"`
	Indices []int `json:"indices"`
}

// OutputRecord pairs a board index with the outcome of its target's lookup.
// Format-specific normalization happens at the encoding boundary.
type OutputRecord struct {
	Index   int     `json:"index"`
	Outcome Outcome `json:"outcome"`
}
