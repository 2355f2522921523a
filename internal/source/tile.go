package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/mmr-tortoise/traffic-board/internal/model"
	"github.com/mmr-tortoise/traffic-board/internal/tile"
)

// maxTileSize caps the bytes read from one tile response.
const maxTileSize = 1 << 20

// roadTypes selects every road class the board displays.
const roadTypes = "[0,1,2,3,4]"

// TileURL returns the request URL for a tile id.
func (c *Client) TileURL(id string) string {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("roadTypes", roadTypes)
	return strings.TrimSuffix(c.tileURL, "/") + "/" + id + ".pbf?" + q.Encode()
}

// TileSpeed queries the tile endpoint for id and returns the speed of its
// single feature in mph.
func (c *Client) TileSpeed(ctx context.Context, id string) (int, error) {
	if !tile.ValidID(id) {
		return 0, fmt.Errorf("%w: tile id %q is not z/x/y", model.ErrInvalidRequest, id)
	}

	resp, err := c.get(ctx, c.TileURL(id))
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxTileSize))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read tile body: %v", model.ErrUpstreamUnavailable, err)
	}

	speed, err := tile.DecodeSpeed(payload)
	if err != nil {
		return 0, err
	}
	if speed < 0 {
		return 0, fmt.Errorf("%w: negative traffic level", model.ErrMalformedResponse)
	}
	return speed, nil
}

// redactKey strips the API key from transport errors, which embed the
// request URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
