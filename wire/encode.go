package wire

import "encoding/binary"

// AppendVarint appends v as a base-128 varint.
func AppendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// AppendTag appends the tag for field number n with wire type t.
func AppendTag(b []byte, n uint64, t Type) []byte {
	return AppendVarint(b, n<<3|uint64(t))
}

// AppendVarintField appends a complete varint field.
func AppendVarintField(b []byte, n, v uint64) []byte {
	return AppendVarint(AppendTag(b, n, TypeVarint), v)
}

// AppendBytesField appends a complete length-delimited field.
func AppendBytesField(b []byte, n uint64, payload []byte) []byte {
	b = AppendTag(b, n, TypeBytes)
	b = AppendVarint(b, uint64(len(payload)))
	return append(b, payload...)
}

// AppendStringField is AppendBytesField for a string payload.
func AppendStringField(b []byte, n uint64, s string) []byte {
	return AppendBytesField(b, n, []byte(s))
}

// AppendFixed32Field appends a little-endian fixed32 field.
func AppendFixed32Field(b []byte, n uint64, v uint32) []byte {
	b = AppendTag(b, n, TypeFixed32)
	return binary.LittleEndian.AppendUint32(b, v)
}

// AppendFixed64Field appends a little-endian fixed64 field.
func AppendFixed64Field(b []byte, n uint64, v uint64) []byte {
	b = AppendTag(b, n, TypeFixed64)
	return binary.LittleEndian.AppendUint64(b, v)
}
