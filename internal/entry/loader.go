// Package entry loads the LED location table into model.Entry values.
//
// The table is a header-driven CSV file (Excel dialect): column order does
// not matter, unknown columns are ignored, and every row is parsed into a
// fixed-shape Entry exactly once. Row problems are collected into a
// model.ValidationReport so that one run reports every malformed row at
// once.
package entry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// Column headers of the LED location table.
const (
	ColumnIndex     = "LED Number"
	ColumnDirection = "Direction"
	ColumnCategory  = "Freeway"
	ColumnLatitude  = "Latitude"
	ColumnLongitude = "Longitude"
	ColumnTile      = "Tile"
	ColumnOpenLR    = "openLr Code"
	ColumnReference = "Reference"
)

// requiredColumns must be present in the header row. Reference is optional:
// tables without it simply have no aliases.
var requiredColumns = []string{
	ColumnIndex,
	ColumnDirection,
	ColumnCategory,
	ColumnLatitude,
	ColumnLongitude,
	ColumnTile,
	ColumnOpenLR,
}

// ErrMissingColumn is returned when the header row lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Load reads and parses the table at path.
//
// Returns a CLIError with ExitInvalidInput if the file cannot be opened,
// and the error from Parse otherwise.
func Load(path string) ([]model.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitInvalidInput,
			fmt.Sprintf("cannot open LED location table %s", path),
			err,
		)
	}
	defer func() { _ = f.Close() }()

	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return entries, nil
}

// Parse reads the table from r. Structural CSV errors and missing headers
// fail immediately; per-row problems are accumulated and returned together
// as a *model.ValidationError.
func Parse(r io.Reader) ([]model.Entry, error) {
	reader := csv.NewReader(r)
	// Rows may have a trailing empty column or omit the optional Reference
	// column, so the field count is not enforced per record.
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: table is empty", ErrMissingColumn)
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var (
		entries []model.Entry
		report  model.ValidationReport
	)

	// Row numbers are 1-based and count the header, matching what a user
	// sees when the table is opened in a spreadsheet.
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}
		if isBlank(record) {
			continue
		}

		e, problems := parseRow(record, columns)
		if len(problems) > 0 {
			for _, p := range problems {
				report.Add(model.ErrMalformedRow, "", fmt.Sprintf("row %d: %s", row, p))
			}
			continue
		}
		entries = append(entries, e)
	}

	if err := report.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// indexColumns maps header names to their positions and verifies that
// every required column is present.
func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		// Spreadsheets exported as UTF-8 CSV prepend a byte order mark.
		name = strings.TrimPrefix(name, "\ufeff")
		columns[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, strconv.Quote(name))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return columns, nil
}

// parseRow converts one record into an Entry. It returns every problem
// found in the row rather than stopping at the first.
func parseRow(record []string, columns map[string]int) (model.Entry, []string) {
	cell := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var (
		e        model.Entry
		problems []string
	)

	index, err := strconv.Atoi(cell(ColumnIndex))
	if err != nil || index <= 0 {
		problems = append(problems, fmt.Sprintf("%s %q is not a positive integer", ColumnIndex, cell(ColumnIndex)))
	}
	e.Index = index

	dir, err := model.ParseDirection(cell(ColumnDirection))
	if err != nil {
		problems = append(problems, err.Error())
	}
	e.Direction = dir

	e.Category = cell(ColumnCategory)
	e.Tile = cell(ColumnTile)
	e.OpenLR = cell(ColumnOpenLR)

	if e.Latitude, err = optionalFloat(cell(ColumnLatitude)); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", ColumnLatitude, err))
	}
	if e.Longitude, err = optionalFloat(cell(ColumnLongitude)); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", ColumnLongitude, err))
	}

	if ref := cell(ColumnReference); ref != "" {
		n, err := strconv.Atoi(ref)
		if err != nil || n < 0 {
			problems = append(problems, fmt.Sprintf("%s %q is not a non-negative integer", ColumnReference, ref))
		}
		e.Reference = n
	}

	return e, problems
}

// optionalFloat parses a coordinate cell. An empty cell is absent, not zero.
func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return &v, nil
}

// isBlank reports whether every field of a record is empty. Spreadsheet
// exports often end with rows of bare commas.
func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
