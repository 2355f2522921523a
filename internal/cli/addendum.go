// Package cli — addendum.go implements the "traffic-board addendum" command.
//
// The addendum command produces one incremental artifact on demand from a
// supplementary LED location table. Unlike the full refresh, gaps in the
// supplementary table's numbering are permitted. The result is written to
// <patches>_add/<version>.add under the output directory.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/traffic-board/internal/config"
	"github.com/mmr-tortoise/traffic-board/internal/encode"
	"github.com/mmr-tortoise/traffic-board/internal/model"
	"github.com/mmr-tortoise/traffic-board/internal/pipeline"
)

// addendumFlags holds the flag values for the addendum command.
type addendumFlags struct {
	direction  string
	version    string
	input      string
	patches    string
	supersedes string
	typical    bool
}

// NewAddendumCommand creates the "addendum" cobra command.
func NewAddendumCommand() *cobra.Command {
	flags := &addendumFlags{}

	cmd := &cobra.Command{
		Use:   "addendum",
		Short: "Write one addendum from a supplementary table",
		Long: `Write one addendum artifact from a supplementary LED location table.

The addendum starts with a reference to the artifact it supersedes,
followed by a blank line and one index,value row per LED. By default it
patches the first CSV artifact configured for the direction.

Examples:
  traffic-board addendum --direction north --version V2_0_0 --input input/led_loc_addendum_V2_0_0.csv
  traffic-board addendum --direction south --version V2_1_0 --input extra.csv --supersedes https://example.com/data_south.csv`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddendum(cmd.Context(), cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.direction, "direction", "", "Direction: north or south (required)")
	cmd.Flags().StringVar(&flags.version, "version", "", "Addendum version, used as the file name (required)")
	cmd.Flags().StringVar(&flags.input, "input", "", "Supplementary LED location table (required)")
	cmd.Flags().StringVar(&flags.patches, "patches", "",
		"Artifact path, relative to the output directory, this addendum patches")
	cmd.Flags().StringVar(&flags.supersedes, "supersedes", "",
		"Reference written into the addendum header (default: public URL of the patched artifact)")
	cmd.Flags().BoolVar(&flags.typical, "typical", false, "Use typical speeds instead of current speeds")

	_ = cmd.MarkFlagRequired("direction")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// runAddendum is the main logic function for the addendum command.
func runAddendum(ctx context.Context, cmd *cobra.Command, flags *addendumFlags) error {
	dir, err := model.ParseDirection(flags.direction)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid direction %q: valid values are north, south", flags.direction), nil)
	}
	kind := model.MetricCurrent
	if flags.typical {
		kind = model.MetricTypical
	}

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	a, err := buildAddendum(env.cfg, dir, kind, flags)
	if err != nil {
		return err
	}

	client, err := env.client()
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid upstream configuration", err)
	}

	p := pipeline.New(env.cfg, client, env.logger, env.metrics)
	VerboseLog("Run %s: addendum %s for %s", p.RunID(), a.Version, dir)

	if err := p.Addendum(ctx, dir, kind, a); err != nil {
		return err
	}

	printAddendumResult(cmd.OutOrStdout(), env.cfg.AddendumPath(a), env.cfg.SupersedesRef(a))
	return nil
}

// buildAddendum turns the flags into an addendum definition and checks it
// with the same rules as configured addenda.
func buildAddendum(cfg *config.Config, dir model.Direction, kind model.MetricKind, flags *addendumFlags) (config.Addendum, error) {
	a := config.Addendum{
		Version:    flags.version,
		Input:      flags.input,
		Patches:    flags.patches,
		Supersedes: flags.supersedes,
	}
	if a.Patches == "" {
		a.Patches = defaultPatches(cfg.Run(dir, kind))
		if a.Patches == "" {
			return a, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("no csv artifact configured for %s %s; pass --patches", dir, kind), nil)
		}
	}

	if problems := cfg.ValidateAddendum("addendum", a); len(problems) > 0 {
		return a, model.WrapCLIError(model.ExitGeneralError, "invalid addendum", &problems[0])
	}
	return a, nil
}

// defaultPatches returns the path of the first CSV artifact of run.
func defaultPatches(run config.RunConfig) string {
	for _, art := range run.Artifacts {
		if strings.EqualFold(art.Format, encode.FormatCSV) {
			return art.Path
		}
	}
	return ""
}

// printAddendumResult outputs the written addendum in text or JSON format.
func printAddendumResult(w io.Writer, path, supersedes string) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"path":       path,
			"supersedes": supersedes,
		}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprintf(w, "wrote %s (supersedes %s)\n", path, supersedes)
}
