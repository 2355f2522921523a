package entry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

const header = "LED Number,Direction,Freeway,Latitude,Longitude,Tile,openLr Code,Reference\n"

// TestParse_Typical verifies that a well-formed table produces one Entry
// per row with optional fields mapped to absent values.
func TestParse_Typical(t *testing.T) {
	input := header +
		"1,North,I-5,47.6062,-122.3321,12/655/1430,CwRbWyNG/ws=,\n" +
		"2,North,I-5,,,,,1\n" +
		"1,South,Special,47.5,-122.3,,,0\n"

	entries, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, model.DirectionNorth, first.Direction)
	assert.Equal(t, "I-5", first.Category)
	require.NotNil(t, first.Latitude)
	assert.InDelta(t, 47.6062, *first.Latitude, 1e-9)
	assert.Equal(t, "12/655/1430", first.Tile)
	assert.Equal(t, "CwRbWyNG/ws=", first.OpenLR)
	assert.Equal(t, 0, first.Reference)

	alias := entries[1]
	assert.Nil(t, alias.Latitude, "blank latitude is absent, not zero")
	assert.Nil(t, alias.Longitude)
	assert.Equal(t, 1, alias.Reference)

	assert.Equal(t, model.DirectionSouth, entries[2].Direction)
	assert.True(t, entries[2].IsSpecial())
}

// TestParse_ColumnOrderAndExtras verifies that columns are matched by
// header name, not position, and that unknown columns are ignored.
func TestParse_ColumnOrderAndExtras(t *testing.T) {
	input := "\ufeffTile,Free Flow Speed,Direction,LED Number,openLr Code,Freeway,Longitude,Latitude\n" +
		"22/1/2,55,South,9,abc,SR-520,-122.1,47.6\n"

	entries, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 9, entries[0].Index)
	assert.Equal(t, "22/1/2", entries[0].Tile)
	assert.Equal(t, 0, entries[0].Reference, "Reference column is optional")
}

func TestParse_MissingColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("LED Number,Direction\n1,North\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), `"Freeway"`)

	_, err = Parse(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

// TestParse_RowDefectsAreBatched verifies that every malformed row is
// reported, not just the first one.
func TestParse_RowDefectsAreBatched(t *testing.T) {
	input := header +
		"x,North,I-5,,,,,\n" +
		"2,East,I-5,,,,,\n" +
		"3,North,I-5,north-ish,,,,\n" +
		"4,North,I-5,,,,,-1\n" +
		",,,,,,,\n" +
		"5,North,I-5,,,,,\n"

	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedRow))

	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Defects, 4)
	assert.Contains(t, err.Error(), "row 2:")
	assert.Contains(t, err.Error(), "row 3:")
	assert.Contains(t, err.Error(), "row 4:")
	assert.Contains(t, err.Error(), "row 5:")
	assert.NotContains(t, err.Error(), "row 6:", "blank rows are skipped")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "led_locations.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"1,North,I-5,,,,,\n"), 0o644))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = Load(filepath.Join(t.TempDir(), "absent.csv"))
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitInvalidInput, cliErr.Code)
}
