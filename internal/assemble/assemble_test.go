package assemble

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

func TestExpand(t *testing.T) {
	targets := []model.CanonicalTarget{
		{Entry: model.Entry{Index: 4}, Indices: []int{4, 1}},
		{Entry: model.Entry{Index: 2}, Indices: []int{2}},
		{Entry: model.Entry{Index: 3}, Indices: []int{3, 5}},
	}
	outcomes := []model.Outcome{model.Speed(40), model.Unknown(), model.Excluded()}

	got, err := Expand(targets, outcomes)
	require.NoError(t, err)

	want := []model.OutputRecord{
		{Index: 1, Outcome: model.Speed(40)},
		{Index: 2, Outcome: model.Unknown()},
		{Index: 3, Outcome: model.Excluded()},
		{Index: 4, Outcome: model.Speed(40)},
		{Index: 5, Outcome: model.Excluded()},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(model.Outcome{})); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, MaxIndex(got))
}

// TestExpand_SpecialAlias covers a Special target aliased by a second
// index: both indices carry the excluded outcome.
func TestExpand_SpecialAlias(t *testing.T) {
	targets := []model.CanonicalTarget{{Entry: model.Entry{Index: 1, Category: model.SpecialCategory}, Indices: []int{1, 2}}}

	got, err := Expand(targets, []model.Outcome{model.Excluded()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ExcludedSentinel, got[0].Outcome.TextValue())
	assert.Equal(t, model.ExcludedSentinel, got[1].Outcome.TextValue())
}

func TestExpand_LengthMismatch(t *testing.T) {
	_, err := Expand([]model.CanonicalTarget{{Indices: []int{1}}}, nil)
	assert.Error(t, err)
}

func TestMaxIndex_Empty(t *testing.T) {
	assert.Equal(t, 0, MaxIndex(nil))
}
