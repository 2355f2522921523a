package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// TestDefault_IsValid verifies that running without a configuration file
// produces the artifact layout deployed firmware requests.
func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())

	run := cfg.Run(model.DirectionSouth, model.MetricCurrent)
	require.Len(t, run.Artifacts, 2)
	assert.Equal(t, Artifact{Path: "data_south_V1_0_5.csv", Format: "csv"}, run.Artifacts[0])
	assert.Equal(t, Artifact{Path: "data_south_V1_0_3.dat", Format: "binary"}, run.Artifacts[1])
	require.Len(t, run.Addenda, 1)
	assert.Equal(t, "V2_0_0", run.Addenda[0].Version)

	typical := cfg.Run(model.DirectionNorth, model.MetricTypical)
	assert.Equal(t, []Artifact{{Path: "typical_data_north.csv", Format: "csv"}}, typical.Artifacts)
	assert.Empty(t, typical.Addenda)
}

// TestLoad_ExampleMatchesDefault keeps the shipped example configuration in
// step with Default.
func TestLoad_ExampleMatchesDefault(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "traffic-board.example.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Validate())

	want := Default()
	want.PublicURL = "https://bearanvil.com/output"
	want.Upstream = Upstream{
		TileURL:    "https://api.tomtom.com/traffic/map/4/tile/flow/absolute",
		SegmentURL: "https://api.tomtom.com/traffic/services/4/flowSegmentData/relative0/10/json",
	}
	assert.Equal(t, want, cfg)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/var/www/output", cfg.OutputDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	assert.Equal(t, 3*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, "http://localhost:8080/tile", cfg.Upstream.TileURL)
	assert.Empty(t, cfg.Upstream.SegmentURL)

	north := cfg.Run(model.DirectionNorth, model.MetricCurrent)
	assert.Equal(t, []Artifact{{Path: "data_north_V1_0_5.csv", Format: "csv"}}, north.Artifacts,
		"lists in the file replace the defaults")

	// Unmentioned sections keep their defaults.
	assert.Len(t, cfg.Run(model.DirectionSouth, model.MetricCurrent).Artifacts, 2)
	assert.Empty(t, cfg.Validate())
}

// TestLoad_JSONC verifies that comments and trailing commas are accepted
// in JSON configuration files.
func TestLoad_JSONC(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full.jsonc"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 3*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, []Artifact{{Path: "data_north_V1_0_5.csv", Format: "csv"}},
		cfg.Run(model.DirectionNorth, model.MetricCurrent).Artifacts)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: soon\n"), 0o644))

	_, err := Load(path)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

// TestValidate_CollectsEveryProblem verifies that validation reports all
// problems at once.
func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "invalid.yaml"))
	require.NoError(t, err)

	errs := cfg.Validate()
	fields := make([]string, len(errs))
	for i := range errs {
		fields[i] = errs[i].Field
	}
	assert.ElementsMatch(t, []string{
		"input",
		"workers",
		"requests_per_second",
		"timeout",
		"south.current.artifacts[0].path",
		"south.current.artifacts[0].format",
		"south.current.addenda[0].version",
		"south.current.addenda[0].input",
		"south.current.addenda[0].patches",
	}, fields)

	var cliErr *model.CLIError
	require.True(t, errors.As(cfg.Err(), &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
	assert.Contains(t, cliErr.Error(), "workers: must be at least 1, got 0")
}

func TestAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")

	cfg := Default()
	require.Error(t, cfg.RequireAPIKey())

	cfg.ApplyEnv()
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.NoError(t, cfg.RequireAPIKey())

	cfg.APIKey = "from-file"
	cfg.ApplyEnv()
	assert.Equal(t, "from-file", cfg.APIKey, "file value wins over environment")
}

func TestAddendumPaths(t *testing.T) {
	cfg := Default()
	a := Addendum{Version: "V2_0_0", Patches: "data_north_V1_0_5.csv"}

	assert.Equal(t, filepath.Join("output", "data_north_V1_0_5.csv_add", "V2_0_0.add"), cfg.AddendumPath(a))
	assert.Equal(t, "data_north_V1_0_5.csv", cfg.SupersedesRef(a))

	cfg.PublicURL = "https://bearanvil.com/output/"
	assert.Equal(t, "https://bearanvil.com/output/data_north_V1_0_5.csv", cfg.SupersedesRef(a))

	a.Supersedes = "https://bearanvil.com/output/data_north_V1_0_5.csv_add/V1_9_0.add"
	assert.Equal(t, a.Supersedes, cfg.SupersedesRef(a))
}
