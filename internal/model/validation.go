package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validation defect kinds. Each one is a sentinel so callers can test an
// aggregate error with errors.Is.
var (
	// ErrDuplicateEntry means the same index appears twice for one direction.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrMissingEntry means the indices of a direction are not contiguous.
	ErrMissingEntry = errors.New("missing entry")

	// ErrBadReference means an alias points at an absent index or at
	// another alias.
	ErrBadReference = errors.New("bad reference")

	// ErrEmptyDirection means the table holds no entries for a direction.
	ErrEmptyDirection = errors.New("no entries for direction")

	// ErrMalformedRow means a table row could not be parsed.
	ErrMalformedRow = errors.New("malformed row")
)

// Defect is a single input problem found during loading or resolution.
type Defect struct {
	// Kind is one of the Err* sentinels above.
	Kind error

	// Direction is the direction being resolved, empty for load defects.
	Direction Direction

	// Indices lists the board indices involved, sorted ascending.
	Indices []int

	// Detail is a short human-readable explanation.
	Detail string
}

// String formats the defect for logs and error messages.
func (d Defect) String() string {
	var b strings.Builder
	b.WriteString(d.Kind.Error())
	if d.Direction != "" {
		fmt.Fprintf(&b, " (%s)", d.Direction)
	}
	if len(d.Indices) > 0 {
		fmt.Fprintf(&b, " %v", d.Indices)
	}
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}
	return b.String()
}

// ValidationReport accumulates every defect found in an input so they can
// all be reported together instead of stopping at the first one.
type ValidationReport struct {
	defects []Defect
}

// Add records a defect. Indices are copied and sorted.
func (r *ValidationReport) Add(kind error, dir Direction, detail string, indices ...int) {
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	r.defects = append(r.defects, Defect{
		Kind:      kind,
		Direction: dir,
		Indices:   sorted,
		Detail:    detail,
	})
}

// Merge appends all defects from another report.
func (r *ValidationReport) Merge(other *ValidationReport) {
	if other == nil {
		return
	}
	r.defects = append(r.defects, other.defects...)
}

// OK reports whether no defect has been recorded.
func (r *ValidationReport) OK() bool {
	return len(r.defects) == 0
}

// Defects returns a copy of the recorded defects in insertion order.
func (r *ValidationReport) Defects() []Defect {
	return append([]Defect(nil), r.defects...)
}

// IndicesOf returns every index recorded under the given kind, sorted.
func (r *ValidationReport) IndicesOf(kind error) []int {
	var out []int
	for _, d := range r.defects {
		if errors.Is(d.Kind, kind) {
			out = append(out, d.Indices...)
		}
	}
	sort.Ints(out)
	return out
}

// Err returns nil when the report is empty, otherwise a *ValidationError
// holding every defect.
func (r *ValidationReport) Err() error {
	if r.OK() {
		return nil
	}
	return &ValidationError{Defects: r.Defects()}
}

// ValidationError is the aggregate failure of a load or resolution step.
type ValidationError struct {
	Defects []Defect
}

// Error lists every defect on its own line after a summary.
func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Defects)+1)
	lines = append(lines, fmt.Sprintf("%d input defect(s) found", len(e.Defects)))
	for _, d := range e.Defects {
		lines = append(lines, "  - "+d.String())
	}
	return strings.Join(lines, "\n")
}

// Is matches any defect kind carried by the aggregate.
func (e *ValidationError) Is(target error) bool {
	for _, d := range e.Defects {
		if errors.Is(d.Kind, target) {
			return true
		}
	}
	return false
}
