// Package resolve turns the entries of one direction into canonical query
// targets.
//
// Several LEDs can share one physical road segment. The LED location table
// expresses this with the Reference column: an aliasing entry borrows the
// query of the entry it references. The resolver folds every alias into its
// referenced entry's CanonicalTarget so that each segment is queried exactly
// once, and validates the table exhaustively before any network call is
// made.
package resolve

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// Options controls a single resolution.
type Options struct {
	// Direction selects which entries are resolved; the other direction's
	// entries are discarded.
	Direction model.Direction

	// AllowMissing disables the contiguous-range check. Addendum inputs only
	// list the LEDs they patch, so they are resolved with this set.
	AllowMissing bool
}

// Resolver validates entries and builds canonical targets.
type Resolver struct {
	logger *zap.Logger
}

// New creates a Resolver that reports defects to logger.
// A nil logger is replaced with a no-op logger.
func New(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve builds the canonical targets for opts.Direction.
//
// Validation is batched: duplicates, gaps and bad references are all
// collected into one model.ValidationReport, and any defect fails the whole
// direction with a *model.ValidationError. On success the targets are
// returned in the encounter order of their representative entries; each
// target's Indices list starts with the representative, followed by its
// aliases in encounter order.
func (r *Resolver) Resolve(entries []model.Entry, opts Options) ([]model.CanonicalTarget, error) {
	if !opts.Direction.IsValid() {
		return nil, fmt.Errorf("resolve: invalid direction %q", opts.Direction)
	}

	dir := opts.Direction
	log := r.logger.With(zap.String("direction", dir.String()))

	var report model.ValidationReport

	// Step 1: Keep this direction's entries and detect duplicate indices.
	// The first occurrence of a duplicated index is kept so that alias
	// resolution below still has something to work with; the run fails
	// regardless.
	seen := make(map[int]bool)
	duplicates := make(map[int]bool)
	var active []model.Entry
	for _, e := range entries {
		if e.Direction != dir {
			continue
		}
		if seen[e.Index] {
			if !duplicates[e.Index] {
				log.Warn("duplicate LED number", zap.Int("index", e.Index))
			}
			duplicates[e.Index] = true
			continue
		}
		seen[e.Index] = true
		active = append(active, e)
	}

	if len(active) == 0 {
		log.Warn("no entries for direction")
		report.Add(model.ErrEmptyDirection, dir, "")
		return nil, report.Err()
	}

	for _, index := range sortedKeys(duplicates) {
		report.Add(model.ErrDuplicateEntry, dir, "", index)
	}

	// Step 2: Verify the indices form a contiguous range.
	if !opts.AllowMissing {
		if missing := findGaps(seen); len(missing) > 0 {
			for _, index := range missing {
				log.Warn("missing LED number", zap.Int("index", index))
			}
			report.Add(model.ErrMissingEntry, dir, "", missing...)
		}
	}

	// Step 3: Non-aliasing entries become targets; aliases are folded into
	// the target of the index they reference.
	targets := make([]model.CanonicalTarget, 0, len(active))
	position := make(map[int]int)
	aliasing := make(map[int]bool)
	for _, e := range active {
		if e.IsAlias() {
			aliasing[e.Index] = true
			continue
		}
		position[e.Index] = len(targets)
		targets = append(targets, model.CanonicalTarget{
			Entry:   e,
			Indices: []int{e.Index},
		})
	}

	// Invalid aliases are grouped by the index they reference so that one
	// defect lists every LED pointing at the same bad reference.
	invalid := make(map[int][]int)
	var invalidOrder []int
	for _, e := range active {
		if !e.IsAlias() {
			continue
		}
		if pos, ok := position[e.Reference]; ok {
			targets[pos].Indices = append(targets[pos].Indices, e.Index)
			continue
		}
		if _, ok := invalid[e.Reference]; !ok {
			invalidOrder = append(invalidOrder, e.Reference)
		}
		invalid[e.Reference] = append(invalid[e.Reference], e.Index)
	}

	for _, ref := range invalidOrder {
		detail := describeBadReference(ref, aliasing[ref], invalid[ref])
		log.Warn("invalid reference",
			zap.Ints("indices", invalid[ref]),
			zap.Int("reference", ref),
			zap.String("reason", detail))
		report.Add(model.ErrBadReference, dir, detail, invalid[ref]...)
	}

	if err := report.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

// describeBadReference explains why an alias could not be resolved.
func describeBadReference(ref int, refIsAlias bool, from []int) string {
	switch {
	case len(from) == 1 && from[0] == ref:
		return fmt.Sprintf("LED %d references itself", ref)
	case refIsAlias:
		return fmt.Sprintf("referenced LED %d is itself an alias", ref)
	default:
		return fmt.Sprintf("referenced LED %d does not exist", ref)
	}
}

// findGaps returns every index missing between the smallest and largest
// index present, ascending.
func findGaps(present map[int]bool) []int {
	indices := sortedKeys(present)
	var missing []int
	for i := 1; i < len(indices); i++ {
		for n := indices[i-1] + 1; n < indices[i]; n++ {
			missing = append(missing, n)
		}
	}
	return missing
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
