package tile

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// testValue encodes one Value message.
type testValue func([]byte) []byte

func doubleValue(x float64) testValue {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, valueDouble, protowire.Fixed64Type)
		return protowire.AppendFixed64(b, math.Float64bits(x))
	}
}

func stringValue(s string) testValue {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, valueString, protowire.BytesType)
		return protowire.AppendString(b, s)
	}
}

func sintValue(x int64) testValue {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, valueSint, protowire.VarintType)
		return protowire.AppendVarint(b, protowire.EncodeZigZag(x))
	}
}

// testLayer describes one layer to encode. Each feature is given as its
// tag list.
type testLayer struct {
	name     string
	keys     []string
	values   []testValue
	features [][]uint32
	unpacked bool
}

func (l testLayer) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, layerVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, 2)
	b = protowire.AppendTag(b, layerName, protowire.BytesType)
	b = protowire.AppendString(b, l.name)

	for i, tags := range l.features {
		var f []byte
		f = protowire.AppendTag(f, featureID, protowire.VarintType)
		f = protowire.AppendVarint(f, uint64(i+1))
		if l.unpacked {
			for _, tag := range tags {
				f = protowire.AppendTag(f, featureTags, protowire.VarintType)
				f = protowire.AppendVarint(f, uint64(tag))
			}
		} else {
			var packed []byte
			for _, tag := range tags {
				packed = protowire.AppendVarint(packed, uint64(tag))
			}
			f = protowire.AppendTag(f, featureTags, protowire.BytesType)
			f = protowire.AppendBytes(f, packed)
		}
		f = protowire.AppendTag(f, featureType, protowire.VarintType)
		f = protowire.AppendVarint(f, uint64(GeomLineString))
		f = protowire.AppendTag(f, featureGeometry, protowire.BytesType)
		f = protowire.AppendBytes(f, []byte{9, 0, 0, 10, 2, 2})

		b = protowire.AppendTag(b, layerFeatures, protowire.BytesType)
		b = protowire.AppendBytes(b, f)
	}

	for _, k := range l.keys {
		b = protowire.AppendTag(b, layerKeys, protowire.BytesType)
		b = protowire.AppendString(b, k)
	}
	for _, v := range l.values {
		b = protowire.AppendTag(b, layerValues, protowire.BytesType)
		b = protowire.AppendBytes(b, v(nil))
	}

	b = protowire.AppendTag(b, layerExtent, protowire.VarintType)
	b = protowire.AppendVarint(b, 4096)
	return b
}

func encodeTile(layers ...testLayer) []byte {
	var b []byte
	for _, l := range layers {
		b = protowire.AppendTag(b, tileLayers, protowire.BytesType)
		b = protowire.AppendBytes(b, l.encode())
	}
	return b
}

// flowLayer is a valid single-feature flow layer whose traffic_level is the
// second key, pointing at the second value.
func flowLayer(kph float64) testLayer {
	return testLayer{
		name:     "Traffic flow",
		keys:     []string{"road_type", TrafficLevelKey},
		values:   []testValue{stringValue("Motorway"), doubleValue(kph)},
		features: [][]uint32{{0, 0, 1, 1}},
	}
}

func TestDecode_Structure(t *testing.T) {
	tl, err := Decode(encodeTile(flowLayer(88.5)))
	require.NoError(t, err)
	require.Len(t, tl.Layers, 1)

	l := tl.Layers[0]
	assert.Equal(t, "Traffic flow", l.Name)
	assert.Equal(t, uint32(2), l.Version)
	assert.Equal(t, uint32(4096), l.Extent)
	assert.Equal(t, []string{"road_type", TrafficLevelKey}, l.Keys)
	require.Len(t, l.Values, 2)
	assert.Equal(t, KindString, l.Values[0].Kind)
	assert.Equal(t, "Motorway", l.Values[0].String)
	assert.Equal(t, KindDouble, l.Values[1].Kind)
	assert.InDelta(t, 88.5, l.Values[1].Double, 1e-12)

	require.Len(t, l.Features, 1)
	f := l.Features[0]
	assert.Equal(t, uint64(1), f.ID)
	assert.Equal(t, []uint32{0, 0, 1, 1}, f.Tags)
	assert.Equal(t, GeomLineString, f.Type)
	assert.Equal(t, []uint32{9, 0, 0, 10, 2, 2}, f.Geometry)
}

func TestDecode_UnpackedTagsAndSint(t *testing.T) {
	layer := flowLayer(40)
	layer.unpacked = true
	layer.values = append(layer.values, sintValue(-7))

	tl, err := Decode(encodeTile(layer))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 0, 1, 1}, tl.Layers[0].Features[0].Tags)
	assert.Equal(t, KindSint, tl.Layers[0].Values[2].Kind)
	assert.Equal(t, int64(-7), tl.Layers[0].Values[2].Int)
}

func TestDecode_Truncated(t *testing.T) {
	payload := encodeTile(flowLayer(40))
	_, err := Decode(payload[:len(payload)-3])
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedResponse))
}

func TestDecode_Empty(t *testing.T) {
	tl, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, tl.Layers)
}

// TestDecodeSpeed covers every extraction step: each malformed variant must
// fail so that the caller falls back to the segment source.
func TestDecodeSpeed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    int
		wantErr error
	}{
		{
			name:    "valid",
			payload: encodeTile(flowLayer(100)),
			want:    62,
		},
		{
			name:    "two layers",
			payload: encodeTile(flowLayer(100), flowLayer(100)),
			wantErr: ErrLayerCount,
		},
		{
			name:    "no layers",
			payload: encodeTile(),
			wantErr: ErrLayerCount,
		},
		{
			name: "two features",
			payload: encodeTile(testLayer{
				name:     "flow",
				keys:     []string{TrafficLevelKey},
				values:   []testValue{doubleValue(50)},
				features: [][]uint32{{0, 0}, {0, 0}},
			}),
			wantErr: ErrFeatureCount,
		},
		{
			name: "key missing",
			payload: encodeTile(testLayer{
				name:     "flow",
				keys:     []string{"road_type"},
				values:   []testValue{doubleValue(50)},
				features: [][]uint32{{0, 0}},
			}),
			wantErr: ErrNoKey,
		},
		{
			name: "feature lacks tag",
			payload: encodeTile(testLayer{
				name:     "flow",
				keys:     []string{"road_type", TrafficLevelKey},
				values:   []testValue{doubleValue(50)},
				features: [][]uint32{{0, 0}},
			}),
			wantErr: ErrNoTag,
		},
		{
			name: "value index out of range",
			payload: encodeTile(testLayer{
				name:     "flow",
				keys:     []string{TrafficLevelKey},
				values:   []testValue{doubleValue(50)},
				features: [][]uint32{{0, 3}},
			}),
			wantErr: ErrBadValue,
		},
		{
			name: "value not a double",
			payload: encodeTile(testLayer{
				name:     "flow",
				keys:     []string{TrafficLevelKey},
				values:   []testValue{stringValue("fast")},
				features: [][]uint32{{0, 0}},
			}),
			wantErr: ErrBadValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSpeed(tt.payload)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.True(t, IsFallback(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpeedMph(t *testing.T) {
	assert.Equal(t, 0, SpeedMph(0))
	assert.Equal(t, 31, SpeedMph(50))
	assert.Equal(t, 55, SpeedMph(88.5))
	assert.Equal(t, 62, SpeedMph(100))
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("22/671879/1464831"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("22/671879"))
	assert.False(t, ValidID("22/1/2/3"))
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
		zoom int
		want string
	}{
		{"world", 0, 0, 0, "0/0/0"},
		{"north-east quadrant", 10, 10, 1, "1/1/0"},
		{"south-west", -10, -100, 2, "2/0/2"},
		{"seattle z12", 47.6062, -122.3321, 12, "12/656/1430"},
		{"seattle default zoom", 47.6062, -122.3321, DefaultZoom, "22/671879/1464831"},
		{"antimeridian", 0, 180, 3, "3/7/4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(tt.lat, tt.lon, tt.zoom)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocate_OutOfRange(t *testing.T) {
	_, err := Locate(86, 0, 10)
	assert.ErrorContains(t, err, "latitude")

	_, err = Locate(0, -181, 10)
	assert.ErrorContains(t, err, "longitude")

	_, err = Locate(0, 0, 31)
	assert.ErrorContains(t, err, "zoom")

	_, err = Locate(math.NaN(), 0, 10)
	assert.Error(t, err)
}
