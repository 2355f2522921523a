package tile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultZoom is the zoom level used for LED tiles. At this zoom a flow
// tile covers a single road segment.
const DefaultZoom = 22

// MaxZoom is the deepest zoom Locate accepts.
const MaxZoom = 30

// MaxLatitude is the Web Mercator latitude limit.
const MaxLatitude = 85.051128779807

// Locate returns the "z/x/y" id of the tile containing lat/lon at zoom.
func Locate(lat, lon float64, zoom int) (string, error) {
	if math.IsNaN(lat) || lat < -MaxLatitude || lat > MaxLatitude {
		return "", fmt.Errorf("latitude %v out of range [-%v, %v]", lat, MaxLatitude, MaxLatitude)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return "", fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	if zoom < 0 || zoom > MaxZoom {
		return "", fmt.Errorf("zoom %d out of range [0, %d]", zoom, MaxZoom)
	}

	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom))

	// lon=180 lands one past the last column.
	last := uint32(1)<<uint(zoom) - 1
	if t.X > last {
		t.X = last
	}
	if t.Y > last {
		t.Y = last
	}
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y), nil
}
