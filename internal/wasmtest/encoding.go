package wasmtest

import (
	"github.com/tetratelabs/wazero/api"
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128(v int32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

func encodeName(s string) []byte {
	return append(EncodeULEB128(uint32(len(s))), s...) //nolint:gosec // G115: names are short
}

func encodeVec(items [][]byte) []byte {
	out := EncodeULEB128(uint32(len(items))) //nolint:gosec // G115: bounded by module size
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func encodeSection(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, EncodeULEB128(uint32(len(body)))...) //nolint:gosec // G115: bounded by module size
	return append(out, body...)
}

func valType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

func encodeFuncType(params, results []api.ValueType) []byte {
	out := []byte{0x60}
	out = append(out, EncodeULEB128(uint32(len(params)))...) //nolint:gosec // G115: tiny
	for _, p := range params {
		out = append(out, valType(p))
	}
	out = append(out, EncodeULEB128(uint32(len(results)))...) //nolint:gosec // G115: tiny
	for _, r := range results {
		out = append(out, valType(r))
	}
	return out
}
