// Package source retrieves one speed outcome per canonical target.
//
// Two upstream endpoints are used in primary/fallback order: the vector
// flow tile endpoint, which returns a protobuf tile for a "z/x/y" id, and
// the flow segment endpoint, which answers a point query with JSON. Each
// endpoint is attempted at most once per target. Lookup failures are
// logged, counted and degraded to an Unknown outcome; they never abort the
// run.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mmr-tortoise/traffic-board/internal/metrics"
	"github.com/mmr-tortoise/traffic-board/internal/model"
	"github.com/mmr-tortoise/traffic-board/internal/tile"
)

// Default upstream endpoints.
const (
	DefaultTileURL    = "https://api.tomtom.com/traffic/map/4/tile/flow/absolute"
	DefaultSegmentURL = "https://api.tomtom.com/traffic/services/4/flowSegmentData/relative0/10/json"
	DefaultTimeout    = 10 * time.Second
)

// Source labels used in logs and metrics.
const (
	SourceTile    = "tile"
	SourceSegment = "segment"
	SourceSkipped = "skipped"
)

// Config holds the settings of a Client.
type Config struct {
	// TileURL is the base URL of the vector flow tile endpoint. The tile id
	// and ".pbf" are appended to it.
	TileURL string

	// SegmentURL is the full URL of the flow segment endpoint.
	SegmentURL string

	// APIKey is the opaque credential sent as the "key" query parameter.
	APIKey string

	// Timeout bounds each individual request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond paces requests across all workers. Zero disables
	// pacing.
	RequestsPerSecond float64

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// ErrMissingAPIKey is returned by New when no credential is configured.
var ErrMissingAPIKey = errors.New("api key is required")

// Client performs speed lookups.
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	tileURL    string
	segmentURL string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New creates a Client. Empty URLs fall back to the public endpoints.
func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		tileURL:    cfg.TileURL,
		segmentURL: cfg.SegmentURL,
		apiKey:     cfg.APIKey,
		http:       cfg.HTTPClient,
		logger:     logger,
		metrics:    m,
	}
	if c.tileURL == "" {
		c.tileURL = DefaultTileURL
	}
	if c.segmentURL == "" {
		c.segmentURL = DefaultSegmentURL
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// Fetch returns the outcome for one target.
//
// Special targets are Excluded without any request. Otherwise the tile
// source is tried first when the entry has a usable tile id; on any tile
// failure the segment source is tried when the entry has coordinates and a
// reference code. If neither yields a speed the outcome is Unknown.
//
// The returned error is non-nil only when ctx is done; every other failure
// is folded into the outcome.
func (c *Client) Fetch(ctx context.Context, target model.CanonicalTarget, kind model.MetricKind) (model.Outcome, error) {
	e := target.Entry
	log := c.logger.With(
		zap.Int("index", e.Index),
		zap.Ints("indices", target.Indices),
		zap.String("direction", e.Direction.String()),
		zap.String("metric", kind.String()),
	)

	if e.IsSpecial() {
		log.Debug("special entry excluded from lookup")
		c.metrics.ObserveLookup(SourceSkipped, "excluded", 0)
		return model.Excluded(), nil
	}

	if tile.ValidID(e.Tile) {
		start := time.Now()
		speed, err := c.TileSpeed(ctx, e.Tile)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Unknown(), ctxErr
		}
		c.metrics.ObserveLookup(SourceTile, model.FailureKind(err), time.Since(start))
		if err == nil {
			log.Debug("retrieved tile speed", zap.String("tile", e.Tile), zap.Int("speed", speed))
			return model.Speed(speed), nil
		}
		log.Info("tile lookup failed, falling back to segment",
			zap.String("tile", e.Tile),
			zap.String("cause", model.FailureKind(err)),
			zap.Error(err))
	} else {
		log.Debug("no usable tile id", zap.String("tile", e.Tile))
	}

	start := time.Now()
	outcome, err := c.SegmentSpeed(ctx, e, kind)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.Unknown(), ctxErr
	}
	var elapsed time.Duration
	if !errors.Is(err, model.ErrInvalidRequest) {
		elapsed = time.Since(start)
	}
	c.metrics.ObserveLookup(SourceSegment, model.FailureKind(err), elapsed)
	if err != nil {
		log.Warn("speed lookup failed",
			zap.String("tile", e.Tile),
			zap.String("coordinates", e.CoordinatesString()),
			zap.String("cause", model.FailureKind(err)),
			zap.Error(err))
		return model.Unknown(), nil
	}

	log.Debug("retrieved segment speed",
		zap.String("coordinates", e.CoordinatesString()),
		zap.Stringer("outcome", outcome))
	return outcome, nil
}

// get performs one paced GET request and returns the response on 200.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", model.ErrInvalidRequest, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, redactKey(err, c.apiKey))
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return resp, nil
}
