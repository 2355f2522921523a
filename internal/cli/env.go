package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/traffic-board/internal/config"
	"github.com/mmr-tortoise/traffic-board/internal/logging"
	"github.com/mmr-tortoise/traffic-board/internal/metrics"
	"github.com/mmr-tortoise/traffic-board/internal/source"
)

// environment bundles what every upstream-facing command needs.
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// loadEnvironment loads and validates the configuration, then builds the
// logger and metrics. The API key precedence is --api-key, then the file,
// then the environment variable.
//
// A missing configuration file is only an error when --config was given
// explicitly; otherwise the defaults are used.
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if cmd.Flags().Changed("config") || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		VerboseLog("No configuration file at %s, using defaults", configPath)
		cfg = config.Default()
	} else {
		VerboseLog("Loaded configuration from %s", configPath)
	}

	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	cfg.ApplyEnv()

	if err := cfg.Err(); err != nil {
		return nil, err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		File:    cfg.LogFile,
		Verbose: verbose,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, logger: logger, metrics: metrics.New()}, nil
}

// client builds the speed source client.
func (e *environment) client() (*source.Client, error) {
	return source.New(source.Config{
		TileURL:           e.cfg.Upstream.TileURL,
		SegmentURL:        e.cfg.Upstream.SegmentURL,
		APIKey:            e.cfg.APIKey,
		Timeout:           e.cfg.Timeout.Duration,
		RequestsPerSecond: e.cfg.RequestsPerSecond,
	}, e.logger, e.metrics)
}

// close writes the metrics textfile and flushes the logger.
func (e *environment) close() {
	if err := e.metrics.WriteTextfile(e.cfg.MetricsFile); err != nil {
		e.logger.Warn("failed to write metrics", zap.Error(err))
	}
	_ = e.logger.Sync()
}
