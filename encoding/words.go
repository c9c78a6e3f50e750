package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Supported register encoding tags.
// h/H/e/f are available to every datastore backend and the seed API; i/I/d
// are accepted only by the external-KV backend, matching the source's
// encoding dispatch for values it reads back as text.
const (
	TagInt16   = 'h'
	TagUint16  = 'H'
	TagFloat16 = 'e'
	TagFloat32 = 'f'
	TagInt32   = 'i'
	TagUint32  = 'I'
	TagFloat64 = 'd'
)

// ByteWidth returns the wire width in bytes of a register encoding tag, or 0
// for an unrecognized tag.
func ByteWidth(tag byte) int {
	switch tag {
	case TagInt16, TagUint16, TagFloat16:
		return 2
	case TagFloat32, TagInt32, TagUint32:
		return 4
	case TagFloat64:
		return 8
	default:
		return 0
	}
}

// WordCount returns the number of consecutive 16-bit registers a value of
// this encoding occupies: max(1, byte_width/2).
func WordCount(tag byte) int {
	w := ByteWidth(tag) / 2
	if w < 1 {
		return 1
	}
	return w
}

// PackWord encodes numeric to the big-endian byte width of tag. Accepted Go
// types per tag: h/i → int, int16, int32, int64 or uint16; H/I → int,
// uint16, uint32 or uint64; e/f/d → float32 or float64. Any other type is
// an error.
func PackWord(tag byte, numeric interface{}) ([]byte, error) {
	switch tag {
	case TagInt16:
		v, err := toInt64(numeric)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(int16(v)))
		return out, nil
	case TagUint16:
		v, err := toUint64(numeric)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(v))
		return out, nil
	case TagFloat16:
		v, err := toFloat64(numeric)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, Float16ToBits(float32(v)))
		return out, nil
	case TagFloat32:
		v, err := toFloat64(numeric)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, math.Float32bits(float32(v)))
		return out, nil
	case TagInt32:
		v, err := toInt64(numeric)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(int32(v)))
		return out, nil
	case TagUint32:
		v, err := toUint64(numeric)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(v))
		return out, nil
	case TagFloat64:
		v, err := toFloat64(numeric)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, math.Float64bits(v))
		return out, nil
	default:
		return nil, fmt.Errorf("encoding: unsupported tag %q", tag)
	}
}

// UnpackWord decodes the full-width bytes for tag back to a Go numeric value
// of the type PackWord accepts for that tag.
func UnpackWord(tag byte, data []byte) (interface{}, error) {
	if len(data) != ByteWidth(tag) {
		return nil, fmt.Errorf("encoding: tag %q expects %d bytes, got %d", tag, ByteWidth(tag), len(data))
	}
	switch tag {
	case TagInt16:
		return int16(binary.BigEndian.Uint16(data)), nil
	case TagUint16:
		return binary.BigEndian.Uint16(data), nil
	case TagFloat16:
		return Float16FromBits(binary.BigEndian.Uint16(data)), nil
	case TagFloat32:
		return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
	case TagInt32:
		return int32(binary.BigEndian.Uint32(data)), nil
	case TagUint32:
		return binary.BigEndian.Uint32(data), nil
	case TagFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
	default:
		return nil, fmt.Errorf("encoding: unsupported tag %q", tag)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint16:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("encoding: value %v (%T) is not an integer", v, v)
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case int:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	default:
		return 0, fmt.Errorf("encoding: value %v (%T) is not an unsigned integer", v, v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("encoding: value %v (%T) is not a float", v, v)
	}
}
