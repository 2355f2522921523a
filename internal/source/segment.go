package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// segmentResponse is the subset of the flow segment payload that is read.
type segmentResponse struct {
	FlowSegmentData *flowSegmentData `json:"flowSegmentData"`
}

type flowSegmentData struct {
	CurrentSpeed  *float64 `json:"currentSpeed"`
	FreeFlowSpeed *float64 `json:"freeFlowSpeed"`
	RoadClosure   bool     `json:"roadClosure"`
	OpenLR        string   `json:"openlr"`
}

// SegmentURL returns the point query URL for lat/lon.
func (c *Client) SegmentURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("point", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("unit", "mph")
	q.Set("openLr", "true")
	return c.segmentURL + "?" + q.Encode()
}

// SegmentSpeed queries the flow segment endpoint for the entry's
// coordinates.
//
// A road closure yields 0 for current speed and Unknown for typical speed,
// without error.
// The echoed reference code must match the entry's; otherwise the response
// belongs to a different road and is rejected.
func (c *Client) SegmentSpeed(ctx context.Context, e model.Entry, kind model.MetricKind) (model.Outcome, error) {
	if !e.HasCoordinates() || e.OpenLR == "" {
		return model.Unknown(), fmt.Errorf("%w: entry lacks coordinates or reference code", model.ErrInvalidRequest)
	}
	if !kind.IsValid() {
		return model.Unknown(), fmt.Errorf("%w: unknown metric %q", model.ErrInvalidRequest, kind)
	}

	resp, err := c.get(ctx, c.SegmentURL(*e.Latitude, *e.Longitude))
	if err != nil {
		return model.Unknown(), err
	}
	defer func() { _ = resp.Body.Close() }()

	var body segmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Unknown(), fmt.Errorf("%w: failed to decode segment response: %v", model.ErrMalformedResponse, err)
	}
	data := body.FlowSegmentData
	if data == nil {
		return model.Unknown(), fmt.Errorf("%w: flowSegmentData missing", model.ErrMalformedResponse)
	}

	if data.RoadClosure {
		if kind == model.MetricCurrent {
			return model.Speed(0), nil
		}
		return model.Unknown(), nil
	}

	speed := data.CurrentSpeed
	field := "currentSpeed"
	if kind == model.MetricTypical {
		speed, field = data.FreeFlowSpeed, "freeFlowSpeed"
	}
	if speed == nil {
		return model.Unknown(), fmt.Errorf("%w: %s missing", model.ErrMalformedResponse, field)
	}
	if *speed < 0 {
		return model.Unknown(), fmt.Errorf("%w: negative %s %v", model.ErrMalformedResponse, field, *speed)
	}

	if data.OpenLR != e.OpenLR {
		return model.Unknown(), fmt.Errorf("%w: got %q, want %q", model.ErrMismatchedIdentity, data.OpenLR, e.OpenLR)
	}

	return model.Speed(int(math.Round(*speed))), nil
}
