// Package config loads the traffic-board configuration file.
//
// The file is YAML by default. Files ending in .json or .jsonc are read as
// JSON with comments: github.com/tidwall/jsonc strips comments and trailing
// commas before the standard encoding/json parser runs. Unset fields are
// filled from Default, and the API key may come from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "traffic-board.yaml"

// APIKeyEnv is the environment variable consulted when no API key is set
// in the file or on the command line.
const APIKeyEnv = "TRAFFIC_BOARD_API_KEY"

// Config is the complete configuration of a traffic-board run.
type Config struct {
	// APIKey is the upstream credential. Prefer the environment variable
	// over storing it in the file.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Input is the LED location table.
	Input string `yaml:"input" json:"input"`

	// OutputDir is the directory every artifact path is relative to.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// PublicURL is the URL OutputDir is published under. Addenda reference
	// the artifact they patch by this URL.
	PublicURL string `yaml:"public_url" json:"public_url"`

	// LogFile receives JSON log lines. Empty disables file logging.
	LogFile string `yaml:"log_file" json:"log_file"`

	// MetricsFile receives a Prometheus textfile after every run. Empty
	// disables it.
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`

	// Workers bounds the number of concurrent lookups.
	Workers int `yaml:"workers" json:"workers"`

	// RequestsPerSecond paces upstream requests. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`

	// Timeout bounds each upstream request.
	Timeout Duration `yaml:"timeout" json:"timeout"`

	Upstream Upstream `yaml:"upstream" json:"upstream"`

	North DirectionConfig `yaml:"north" json:"north"`
	South DirectionConfig `yaml:"south" json:"south"`
}

// Upstream overrides the provider endpoints. Empty values use the public
// endpoints.
type Upstream struct {
	TileURL    string `yaml:"tile_url" json:"tile_url"`
	SegmentURL string `yaml:"segment_url" json:"segment_url"`
}

// DirectionConfig lists the artifacts produced for one direction.
type DirectionConfig struct {
	Current RunConfig `yaml:"current" json:"current"`
	Typical RunConfig `yaml:"typical" json:"typical"`
}

// RunConfig lists the artifacts of one direction and metric kind.
type RunConfig struct {
	Artifacts []Artifact `yaml:"artifacts" json:"artifacts"`
	Addenda   []Addendum `yaml:"addenda" json:"addenda"`
}

// Artifact is one full-refresh output file.
type Artifact struct {
	// Path is relative to OutputDir.
	Path string `yaml:"path" json:"path"`

	// Format is an encoder name: csv or binary.
	Format string `yaml:"format" json:"format"`
}

// Addendum is one incremental artifact patching a full-refresh artifact.
type Addendum struct {
	// Version names the firmware generation; the file is <Version>.add.
	Version string `yaml:"version" json:"version"`

	// Input is the supplementary LED location table.
	Input string `yaml:"input" json:"input"`

	// Patches is the path, relative to OutputDir, of the artifact this
	// addendum patches. The addendum is written to <Patches>_add/.
	Patches string `yaml:"patches" json:"patches"`

	// Supersedes overrides the reference written into the addendum header.
	// By default it is PublicURL joined with Patches.
	Supersedes string `yaml:"supersedes" json:"supersedes"`
}

// Duration is a time.Duration read from a string such as "10s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file is present. Its
// artifact names are the ones deployed firmware already requests.
func Default() *Config {
	return &Config{
		Input:     "input/led_locations_V1_0_5.csv",
		OutputDir: "output",
		LogFile:   "output/fetch_tomtom_data.log",
		Workers:   8,
		Timeout:   Duration{10 * time.Second},
		North:     defaultDirection("north"),
		South:     defaultDirection("south"),
	}
}

func defaultDirection(name string) DirectionConfig {
	current := "data_" + name + "_V1_0_5.csv"
	return DirectionConfig{
		Current: RunConfig{
			Artifacts: []Artifact{
				{Path: current, Format: "csv"},
				{Path: "data_" + name + "_V1_0_3.dat", Format: "binary"},
			},
			Addenda: []Addendum{
				{Version: "V2_0_0", Input: "input/led_loc_addendum_V2_0_0.csv", Patches: current},
			},
		},
		Typical: RunConfig{
			Artifacts: []Artifact{
				{Path: "typical_data_" + name + ".csv", Format: "csv"},
			},
		},
	}
}

// Load reads the configuration at path on top of Default.
//
// Returns a CLIError with ExitConfigError when the file cannot be read or
// parsed. A missing file also satisfies errors.Is(err, os.ErrNotExist).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("cannot read configuration %s", path),
			err,
		)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("failed to parse configuration %s", path),
			err,
		)
	}
	return cfg, nil
}

// Parse decodes data on top of Default. ext selects the syntax: ".json"
// and ".jsonc" are JSON with comments, anything else is YAML.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()

	// A list given in the file replaces the default list as a whole.
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ApplyEnv fills the API key from the environment when it is unset.
func (c *Config) ApplyEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(APIKeyEnv)
	}
}

// ErrMissingAPIKey is returned by RequireAPIKey.
var ErrMissingAPIKey = errors.New("no API key configured")

// RequireAPIKey returns a CLIError with ExitConfigError when no API key is
// set. Commands that never contact the upstream do not call it.
func (c *Config) RequireAPIKey() error {
	if c.APIKey != "" {
		return nil
	}
	return model.WrapCLIError(
		model.ExitConfigError,
		fmt.Sprintf("set api_key, --api-key or %s", APIKeyEnv),
		ErrMissingAPIKey,
	)
}

// For returns the settings of one direction.
func (c *Config) For(dir model.Direction) DirectionConfig {
	if dir == model.DirectionSouth {
		return c.South
	}
	return c.North
}

// Run returns the settings of one direction and metric kind.
func (c *Config) Run(dir model.Direction, kind model.MetricKind) RunConfig {
	d := c.For(dir)
	if kind == model.MetricTypical {
		return d.Typical
	}
	return d.Current
}

// ArtifactPath resolves an artifact path against OutputDir.
func (c *Config) ArtifactPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.OutputDir, rel)
}

// AddendumPath returns where an addendum is written:
// <OutputDir>/<Patches>_add/<Version>.add.
func (c *Config) AddendumPath(a Addendum) string {
	return filepath.Join(c.ArtifactPath(a.Patches+"_add"), a.Version+".add")
}

// SupersedesRef returns the reference written into an addendum header.
func (c *Config) SupersedesRef(a Addendum) string {
	if a.Supersedes != "" {
		return a.Supersedes
	}
	if c.PublicURL == "" {
		return a.Patches
	}
	return strings.TrimSuffix(c.PublicURL, "/") + "/" + filepath.ToSlash(a.Patches)
}
