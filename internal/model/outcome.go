package model

import (
	"encoding/json"
	"fmt"
)

// OutcomeState is the discriminator of an Outcome.
type OutcomeState int

const (
	// StateUnknown means no speed could be retrieved.
	StateUnknown OutcomeState = iota

	// StateExcluded means the target was deliberately not queried.
	StateExcluded

	// StateValue means a concrete speed was retrieved.
	StateValue
)

// String returns "unknown", "excluded" or "value".
func (s OutcomeState) String() string {
	switch s {
	case StateExcluded:
		return "excluded"
	case StateValue:
		return "value"
	default:
		return "unknown"
	}
}

// Sentinel integers used by text artifacts. They never appear inside the
// pipeline itself; only Outcome.TextValue produces them.
const (
	UnknownSentinel  = -1
	ExcludedSentinel = -2
)

// Outcome is the result of a speed lookup for one canonical target.
// The zero value is Unknown.
type Outcome struct {
	state OutcomeState
	speed int
}

// Unknown returns the outcome for a failed or impossible lookup.
func Unknown() Outcome {
	return Outcome{state: StateUnknown}
}

// Excluded returns the outcome for a deliberately skipped target.
func Excluded() Outcome {
	return Outcome{state: StateExcluded}
}

// Speed returns a concrete speed outcome in mph.
func Speed(mph int) Outcome {
	return Outcome{state: StateValue, speed: mph}
}

// State returns the outcome's discriminator.
func (o Outcome) State() OutcomeState {
	return o.state
}

// Value returns the speed and whether the outcome carries one.
func (o Outcome) Value() (int, bool) {
	if o.state != StateValue {
		return 0, false
	}
	return o.speed, true
}

// IsKnown reports whether the outcome carries a concrete speed.
func (o Outcome) IsKnown() bool {
	return o.state == StateValue
}

// TextValue renders the outcome for formats that distinguish unknown from
// excluded: -1 for unknown, -2 for excluded, the speed otherwise.
func (o Outcome) TextValue() int {
	switch o.state {
	case StateExcluded:
		return ExcludedSentinel
	case StateValue:
		return o.speed
	default:
		return UnknownSentinel
	}
}

// ByteValue renders the outcome for unsigned-byte formats. Both sentinels
// become 0 and speeds are clamped into 0..255.
func (o Outcome) ByteValue() byte {
	if o.state != StateValue {
		return 0
	}
	switch {
	case o.speed < 0:
		return 0
	case o.speed > 255:
		return 255
	default:
		return byte(o.speed)
	}
}

// String returns a human-readable form used in logs.
func (o Outcome) String() string {
	switch o.state {
	case StateExcluded:
		return "excluded"
	case StateValue:
		return fmt.Sprintf("%d mph", o.speed)
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the outcome as its text value so --json output
// matches the delimited-text artifact.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.TextValue())
}
