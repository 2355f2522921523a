// Package assemble expands per-target outcomes into per-index records.
package assemble

import (
	"fmt"
	"sort"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// Expand produces one OutputRecord per index bound to each target, sorted
// ascending by index. outcomes[i] is the outcome of targets[i]; the order in
// which outcomes were computed does not affect the result.
func Expand(targets []model.CanonicalTarget, outcomes []model.Outcome) ([]model.OutputRecord, error) {
	if len(targets) != len(outcomes) {
		return nil, fmt.Errorf("assemble: %d targets but %d outcomes", len(targets), len(outcomes))
	}

	n := 0
	for _, t := range targets {
		n += len(t.Indices)
	}

	records := make([]model.OutputRecord, 0, n)
	for i, t := range targets {
		for _, index := range t.Indices {
			records = append(records, model.OutputRecord{Index: index, Outcome: outcomes[i]})
		}
	}

	Sort(records)
	return records, nil
}

// Sort orders records ascending by index. Records with equal indices keep
// their relative order.
func Sort(records []model.OutputRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Index < records[j].Index
	})
}

// MaxIndex returns the largest index in records, or 0 when empty.
func MaxIndex(records []model.OutputRecord) int {
	max := 0
	for _, r := range records {
		if r.Index > max {
			max = r.Index
		}
	}
	return max
}
