// Package cli — tile.go implements the "traffic-board tile" command.
//
// The tile command computes the "z/x/y" flow tile id for a coordinate, the
// value operators put in the tile column of the LED location table. With
// --fetch it also queries that tile and prints its speed.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/traffic-board/internal/model"
	"github.com/mmr-tortoise/traffic-board/internal/tile"
)

// tileFlags holds the flag values for the tile command.
type tileFlags struct {
	lat float64
	lon float64

	// zoom is the tile zoom level.
	zoom int

	// fetch queries the tile after computing its id.
	fetch bool
}

// NewTileCommand creates the "tile" cobra command.
func NewTileCommand() *cobra.Command {
	flags := &tileFlags{}

	cmd := &cobra.Command{
		Use:   "tile --lat <latitude> --lon <longitude>",
		Short: "Compute the flow tile id of a coordinate",
		Long: `Compute the z/x/y flow tile id containing a coordinate.

Examples:
  traffic-board tile --lat 47.6062 --lon -122.3321
  traffic-board tile --lat 47.6062 --lon -122.3321 --zoom 12
  traffic-board tile --lat 47.6062 --lon -122.3321 --fetch --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runTile(cmd.Context(), cmd, flags)
		},
	}

	cmd.Flags().Float64Var(&flags.lat, "lat", 0, "Latitude in decimal degrees (required)")
	cmd.Flags().Float64Var(&flags.lon, "lon", 0, "Longitude in decimal degrees (required)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	cmd.Flags().IntVar(&flags.zoom, "zoom", tile.DefaultZoom,
		fmt.Sprintf("Zoom level (0-%d)", tile.MaxZoom))
	cmd.Flags().BoolVar(&flags.fetch, "fetch", false, "Query the tile and print its speed")

	return cmd
}

// tileResult is the output of the tile command.
type tileResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      int     `json:"zoom"`
	Tile      string  `json:"tile"`

	// Speed is set only with --fetch.
	Speed *int `json:"speedMph,omitempty"`
}

// runTile is the main logic function for the tile command.
func runTile(ctx context.Context, cmd *cobra.Command, flags *tileFlags) error {
	lat, lon := flags.lat, flags.lon

	id, err := tile.Locate(lat, lon, flags.zoom)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot compute tile", err)
	}
	result := tileResult{Latitude: lat, Longitude: lon, Zoom: flags.zoom, Tile: id}

	if flags.fetch {
		env, err := loadEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		client, err := env.client()
		if err != nil {
			return model.WrapCLIError(model.ExitConfigError, "invalid upstream configuration", err)
		}
		speed, err := client.TileSpeed(ctx, id)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("tile %s lookup failed", id), err)
		}
		result.Speed = &speed
	}

	printTileResult(cmd.OutOrStdout(), result)
	return nil
}

// printTileResult outputs the tile id, and the speed when fetched.
func printTileResult(w io.Writer, r tileResult) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	if r.Speed == nil {
		fmt.Fprintln(w, r.Tile)
		return
	}
	fmt.Fprintf(w, "%s %d mph\n", r.Tile, *r.Speed)
}
