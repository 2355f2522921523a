package tile

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// TrafficLevelKey is the feature attribute holding the flow speed in km/h.
const TrafficLevelKey = "traffic_level"

// KphToMph converts km/h to mph.
const KphToMph = 0.621371

// Reasons a tile cannot yield a traffic level. All of them wrap
// model.ErrMalformedResponse and cause a fallback to the segment source.
var (
	ErrLayerCount   = fmt.Errorf("%w: tile must have exactly one layer", model.ErrMalformedResponse)
	ErrFeatureCount = fmt.Errorf("%w: layer must have exactly one feature", model.ErrMalformedResponse)
	ErrNoKey        = fmt.Errorf("%w: %s key not in layer", model.ErrMalformedResponse, TrafficLevelKey)
	ErrNoTag        = fmt.Errorf("%w: feature has no %s tag", model.ErrMalformedResponse, TrafficLevelKey)
	ErrBadValue     = fmt.Errorf("%w: %s value is missing or not a double", model.ErrMalformedResponse, TrafficLevelKey)
)

// ValidID reports whether id has the "z/x/y" shape the tile endpoint
// expects, that is exactly two slashes.
func ValidID(id string) bool {
	return strings.Count(id, "/") == 2
}

// TrafficLevel extracts the traffic_level attribute of the tile's single
// feature, in km/h.
//
// The tile must contain exactly one layer holding exactly one feature, the
// layer's key table must contain traffic_level, the feature must carry a tag
// for that key, and the referenced value must be a double. Anything else is
// an error.
func (t *Tile) TrafficLevel() (float64, error) {
	if len(t.Layers) != 1 {
		return 0, fmt.Errorf("%w (got %d)", ErrLayerCount, len(t.Layers))
	}
	layer := &t.Layers[0]

	if len(layer.Features) != 1 {
		return 0, fmt.Errorf("%w (got %d)", ErrFeatureCount, len(layer.Features))
	}
	feature := &layer.Features[0]

	keyIndex := -1
	for i, k := range layer.Keys {
		if k == TrafficLevelKey {
			keyIndex = i
			break
		}
	}
	if keyIndex < 0 {
		return 0, ErrNoKey
	}

	valueIndex := -1
	for i := 0; i+1 < len(feature.Tags); i += 2 {
		if int(feature.Tags[i]) == keyIndex {
			valueIndex = int(feature.Tags[i+1])
			break
		}
	}
	if valueIndex < 0 {
		return 0, ErrNoTag
	}

	if valueIndex >= len(layer.Values) {
		return 0, fmt.Errorf("%w (index %d of %d)", ErrBadValue, valueIndex, len(layer.Values))
	}
	v := layer.Values[valueIndex]
	if v.Kind != KindDouble {
		return 0, fmt.Errorf("%w (got %s)", ErrBadValue, v.Kind)
	}
	return v.Double, nil
}

// SpeedMph converts a traffic level in km/h to whole mph. Halves round to
// even.
func SpeedMph(kph float64) int {
	return int(math.RoundToEven(kph * KphToMph))
}

// DecodeSpeed decodes a payload and returns its speed in mph.
func DecodeSpeed(payload []byte) (int, error) {
	t, err := Decode(payload)
	if err != nil {
		return 0, err
	}
	kph, err := t.TrafficLevel()
	if err != nil {
		return 0, err
	}
	return SpeedMph(kph), nil
}

// IsFallback reports whether err is a tile extraction failure, as opposed
// to a transport failure.
func IsFallback(err error) bool {
	return errors.Is(err, model.ErrMalformedResponse)
}
