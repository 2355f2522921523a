// Package cli — fetch.go implements the "traffic-board fetch" command.
//
// The fetch command performs one full refresh: it loads the LED location
// table, validates it per direction, queries a speed for every distinct
// location, and writes the configured artifacts. Configured addenda are
// produced after each successful direction.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/traffic-board/internal/model"
	"github.com/mmr-tortoise/traffic-board/internal/pipeline"
)

// fetchFlags holds the flag values for the fetch command.
type fetchFlags struct {
	// typical requests typical speeds instead of current ones.
	typical bool

	// direction selects north, south, or both.
	direction string
}

// NewFetchCommand creates the "fetch" cobra command.
func NewFetchCommand() *cobra.Command {
	flags := &fetchFlags{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch speeds and write the board artifacts",
		Long: `Fetch speeds for every LED and write the configured artifacts.

The LED location table is validated before any request is made. Every
problem in it is reported at once and nothing is written.

Examples:
  traffic-board fetch
  traffic-board fetch --direction north
  traffic-board fetch --typical --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.typical, "typical", false,
		"Fetch typical speeds instead of current speeds")
	cmd.Flags().StringVar(&flags.direction, "direction", "both",
		"Direction to refresh: north, south, both")

	return cmd
}

// runFetch is the main logic function for the fetch command.
func runFetch(ctx context.Context, cmd *cobra.Command, flags *fetchFlags) error {
	// Step 1: Validate flags before touching configuration or the network.
	dirs, err := parseDirections(flags.direction)
	if err != nil {
		return err
	}
	kind := model.MetricCurrent
	if flags.typical {
		kind = model.MetricTypical
	}

	// Step 2: Load configuration, logger and metrics.
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	client, err := env.client()
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid upstream configuration", err)
	}

	// Step 3: Load the table. Per-direction validation happens in the run.
	entries, err := pipeline.LoadEntries(env.cfg.Input)
	if err != nil {
		return err
	}
	VerboseLog("Loaded %d entries from %s", len(entries), env.cfg.Input)

	// Step 4: Run every requested direction.
	p := pipeline.New(env.cfg, client, env.logger, env.metrics)
	VerboseLog("Run %s: %s speeds for %s", p.RunID(), kind, flags.direction)

	results, runErr := p.RunAll(ctx, entries, dirs, kind)

	// Partial results are still printed so the operator sees what was
	// written before a failure.
	if len(results) > 0 || runErr == nil {
		printFetchResult(cmd.OutOrStdout(), p.RunID(), results)
	}
	return runErr
}

// parseDirections converts the --direction flag into the ordered list of
// directions to refresh.
func parseDirections(s string) ([]model.Direction, error) {
	if strings.EqualFold(strings.TrimSpace(s), "both") {
		return []model.Direction{model.DirectionNorth, model.DirectionSouth}, nil
	}
	dir, err := model.ParseDirection(s)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid direction %q: valid values are north, south, both", s), nil)
	}
	return []model.Direction{dir}, nil
}

// fetchResultJSON is the JSON output structure of the fetch command.
type fetchResultJSON struct {
	RunID   string             `json:"runId"`
	Results []*pipeline.Result `json:"results"`
}

// printFetchResult outputs the run results in text or JSON format,
// depending on the global --json flag.
func printFetchResult(w io.Writer, runID string, results []*pipeline.Result) {
	if IsJSONOutput() {
		out := fetchResultJSON{RunID: runID, Results: results}
		if out.Results == nil {
			out.Results = []*pipeline.Result{}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	for _, r := range results {
		fmt.Fprintf(w, "%s %s: %d targets, %d LEDs (%s)\n",
			r.Direction, r.Metric, r.Targets, len(r.Records), SummarizeRecords(r.Records))
		for _, path := range r.Artifacts {
			fmt.Fprintf(w, "  wrote %s\n", path)
		}
		for _, a := range r.Addenda {
			if a.Error != "" {
				fmt.Fprintf(w, "  addendum %s failed: %s\n", a.Version, a.Error)
				continue
			}
			fmt.Fprintf(w, "  wrote %s\n", a.Path)
		}
	}
}

// SummarizeRecords counts records by outcome state, for example
// "40 known, 2 unknown, 3 excluded". Zero counts are omitted; an empty
// slice yields "no records".
func SummarizeRecords(records []model.OutputRecord) string {
	var known, unknown, excluded int
	for _, r := range records {
		switch r.Outcome.State() {
		case model.StateValue:
			known++
		case model.StateExcluded:
			excluded++
		default:
			unknown++
		}
	}

	var parts []string
	if known > 0 {
		parts = append(parts, fmt.Sprintf("%d known", known))
	}
	if unknown > 0 {
		parts = append(parts, fmt.Sprintf("%d unknown", unknown))
	}
	if excluded > 0 {
		parts = append(parts, fmt.Sprintf("%d excluded", excluded))
	}
	if len(parts) == 0 {
		return "no records"
	}
	return strings.Join(parts, ", ")
}
