// Package tile decodes vector flow tiles and locates tiles by coordinate.
//
// Flow tiles are Mapbox Vector Tile 2.1 protobuf payloads. Only the parts
// needed to read per-feature attributes are decoded: layer names, key and
// value tables, and feature tags. Geometry is kept as raw command integers
// and never interpreted.
package tile

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// Field numbers from vector_tile.proto (version 2.1).
const (
	tileLayers protowire.Number = 3

	layerVersion  protowire.Number = 15
	layerName     protowire.Number = 1
	layerFeatures protowire.Number = 2
	layerKeys     protowire.Number = 3
	layerValues   protowire.Number = 4
	layerExtent   protowire.Number = 5

	featureID       protowire.Number = 1
	featureTags     protowire.Number = 2
	featureType     protowire.Number = 3
	featureGeometry protowire.Number = 4

	valueString protowire.Number = 1
	valueFloat  protowire.Number = 2
	valueDouble protowire.Number = 3
	valueInt    protowire.Number = 4
	valueUint   protowire.Number = 5
	valueSint   protowire.Number = 6
	valueBool   protowire.Number = 7
)

// GeomType is the geometry type of a feature.
type GeomType uint32

const (
	GeomUnknown GeomType = iota
	GeomPoint
	GeomLineString
	GeomPolygon
)

// ValueKind identifies which member of a Value is set.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindString
	KindFloat
	KindDouble
	KindInt
	KindUint
	KindSint
	KindBool
)

var kindNames = map[ValueKind]string{
	KindNone:   "none",
	KindString: "string",
	KindFloat:  "float",
	KindDouble: "double",
	KindInt:    "int",
	KindUint:   "uint",
	KindSint:   "sint",
	KindBool:   "bool",
}

// String returns the protobuf field name of the kind.
func (k ValueKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one entry of a layer's value table. Exactly one member is set,
// selected by Kind.
type Value struct {
	Kind   ValueKind
	String string
	Float  float32
	Double float64
	Int    int64
	Uint   uint64
	Bool   bool
}

// Feature is one feature of a layer.
type Feature struct {
	ID uint64

	// Tags alternates key and value indexes into the layer's tables.
	Tags []uint32

	Type     GeomType
	Geometry []uint32
}

// Layer is one named layer of a tile.
type Layer struct {
	Version  uint32
	Name     string
	Features []Feature
	Keys     []string
	Values   []Value
	Extent   uint32
}

// Tile is a decoded vector tile.
type Tile struct {
	Layers []Layer
}

// Decode parses a vector tile payload. Unknown fields are skipped.
// Errors wrap model.ErrMalformedResponse.
func Decode(b []byte) (*Tile, error) {
	t := &Tile{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, field []byte) error {
		if num != tileLayers {
			return nil
		}
		if typ != protowire.BytesType {
			return wireTypeError("tile.layers", typ)
		}
		layer, err := decodeLayer(field)
		if err != nil {
			return err
		}
		t.Layers = append(t.Layers, layer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func decodeLayer(b []byte) (Layer, error) {
	var l Layer
	err := walk(b, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case layerVersion:
			v, err := varint(field, typ, "layer.version")
			l.Version = uint32(v)
			return err
		case layerName:
			if typ != protowire.BytesType {
				return wireTypeError("layer.name", typ)
			}
			l.Name = string(field)
		case layerFeatures:
			if typ != protowire.BytesType {
				return wireTypeError("layer.features", typ)
			}
			f, err := decodeFeature(field)
			if err != nil {
				return err
			}
			l.Features = append(l.Features, f)
		case layerKeys:
			if typ != protowire.BytesType {
				return wireTypeError("layer.keys", typ)
			}
			l.Keys = append(l.Keys, string(field))
		case layerValues:
			if typ != protowire.BytesType {
				return wireTypeError("layer.values", typ)
			}
			v, err := decodeValue(field)
			if err != nil {
				return err
			}
			l.Values = append(l.Values, v)
		case layerExtent:
			v, err := varint(field, typ, "layer.extent")
			l.Extent = uint32(v)
			return err
		}
		return nil
	})
	return l, err
}

func decodeFeature(b []byte) (Feature, error) {
	var f Feature
	err := walk(b, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case featureID:
			v, err := varint(field, typ, "feature.id")
			f.ID = v
			return err
		case featureTags:
			tags, err := uint32s(field, typ, "feature.tags")
			f.Tags = append(f.Tags, tags...)
			return err
		case featureType:
			v, err := varint(field, typ, "feature.type")
			f.Type = GeomType(v)
			return err
		case featureGeometry:
			geom, err := uint32s(field, typ, "feature.geometry")
			f.Geometry = append(f.Geometry, geom...)
			return err
		}
		return nil
	})
	return f, err
}

func decodeValue(b []byte) (Value, error) {
	var v Value
	err := walk(b, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case valueString:
			if typ != protowire.BytesType {
				return wireTypeError("value.string_value", typ)
			}
			v.Kind, v.String = KindString, string(field)
		case valueFloat:
			if typ != protowire.Fixed32Type {
				return wireTypeError("value.float_value", typ)
			}
			x, _ := protowire.ConsumeFixed32(field)
			v.Kind, v.Float = KindFloat, math.Float32frombits(x)
		case valueDouble:
			if typ != protowire.Fixed64Type {
				return wireTypeError("value.double_value", typ)
			}
			x, _ := protowire.ConsumeFixed64(field)
			v.Kind, v.Double = KindDouble, math.Float64frombits(x)
		case valueInt:
			x, err := varint(field, typ, "value.int_value")
			v.Kind, v.Int = KindInt, int64(x)
			return err
		case valueUint:
			x, err := varint(field, typ, "value.uint_value")
			v.Kind, v.Uint = KindUint, x
			return err
		case valueSint:
			x, err := varint(field, typ, "value.sint_value")
			v.Kind, v.Int = KindSint, protowire.DecodeZigZag(x)
			return err
		case valueBool:
			x, err := varint(field, typ, "value.bool_value")
			v.Kind, v.Bool = KindBool, protowire.DecodeBool(x)
			return err
		}
		return nil
	})
	return v, err
}

// walk iterates over the fields of one message. For length-delimited fields
// the callback receives the payload; for all other types it receives the
// raw encoded value.
func walk(b []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		b = b[n:]

		var field []byte
		if typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return malformed(protowire.ParseError(m))
			}
			field, n = v, m
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return malformed(protowire.ParseError(n))
			}
			field = b[:n]
		}
		b = b[n:]

		if err := fn(num, typ, field); err != nil {
			return err
		}
	}
	return nil
}

// varint decodes a varint field value.
func varint(field []byte, typ protowire.Type, name string) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, wireTypeError(name, typ)
	}
	v, n := protowire.ConsumeVarint(field)
	if n < 0 {
		return 0, malformed(protowire.ParseError(n))
	}
	return v, nil
}

// uint32s decodes a repeated uint32 field in either packed or unpacked form.
func uint32s(field []byte, typ protowire.Type, name string) ([]uint32, error) {
	switch typ {
	case protowire.VarintType:
		v, err := varint(field, typ, name)
		return []uint32{uint32(v)}, err
	case protowire.BytesType:
		var out []uint32
		for len(field) > 0 {
			v, n := protowire.ConsumeVarint(field)
			if n < 0 {
				return nil, malformed(protowire.ParseError(n))
			}
			out = append(out, uint32(v))
			field = field[n:]
		}
		return out, nil
	default:
		return nil, wireTypeError(name, typ)
	}
}

func malformed(err error) error {
	return fmt.Errorf("%w: vector tile: %v", model.ErrMalformedResponse, err)
}

func wireTypeError(field string, typ protowire.Type) error {
	return fmt.Errorf("%w: vector tile: unexpected wire type %d for %s",
		model.ErrMalformedResponse, typ, field)
}
