// CLAUDE:SUMMARY Permissive varint/length-delimited field decoder for ultrabuf payloads.
// Package wire decodes the Protobuf-like binary field format carried by
// ultrabuf payloads into a tree of Fields.
//
// Decoding never fails. Truncated varints yield a partial value, a length
// that runs past the buffer or an unsupported wire type stops the current
// message and returns the fields decoded so far. Length-delimited payloads
// are always decoded recursively as a best-effort guess, so a Field holding
// a UTF-8 string may also carry meaningless Children.
package wire

import (
	"encoding/binary"
	"strings"
)

// Type is a field's wire type (the low three bits of its tag).
type Type uint8

const (
	TypeVarint     Type = 0
	TypeFixed64    Type = 1
	TypeBytes      Type = 2
	TypeStartGroup Type = 3 // deprecated, stops decoding
	TypeEndGroup   Type = 4 // deprecated, stops decoding
	TypeFixed32    Type = 5
)

func (t Type) String() string {
	switch t {
	case TypeVarint:
		return "varint"
	case TypeFixed64:
		return "fixed64"
	case TypeBytes:
		return "length_delimited"
	case TypeStartGroup:
		return "start_group"
	case TypeEndGroup:
		return "end_group"
	case TypeFixed32:
		return "fixed32"
	default:
		return "unknown"
	}
}

// DefaultMaxDepth bounds recursion into length-delimited payloads.
const DefaultMaxDepth = 20

// Field is one decoded (number, type, value) unit.
type Field struct {
	Number   uint64
	Type     Type
	Offset   int    // offset of the value, relative to the enclosing message
	Value    uint64 // varint value, or little-endian fixed32/fixed64 value
	Raw      []byte // fixed-width bytes or length-delimited payload
	Children []Field
}

// Child returns the first child with the given field number.
func (f Field) Child(number uint64) (Field, bool) {
	for _, c := range f.Children {
		if c.Number == number {
			return c, true
		}
	}
	return Field{}, false
}

// ChildrenNumbered returns every child with the given field number, in order.
func (f Field) ChildrenNumbered(number uint64) []Field {
	var out []Field
	for _, c := range f.Children {
		if c.Number == number {
			out = append(out, c)
		}
	}
	return out
}

// Text returns Raw decoded as UTF-8 with invalid byte sequences dropped.
func (f Field) Text() string {
	return LossyString(f.Raw)
}

// LossyString decodes b as UTF-8, silently dropping invalid sequences.
func LossyString(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

// DecodeVarint reads a base-128 varint starting at off and returns the value
// and the offset just past it. Decoding stops at the end of the buffer, so a
// truncated varint yields whatever groups were available. Groups beyond 64
// bits of shift are consumed but ignored.
func DecodeVarint(data []byte, off int) (uint64, int) {
	var v uint64
	var shift uint
	for off < len(data) {
		b := data[off]
		off++
		if shift < 64 {
			v |= uint64(b&0x7f) << shift
		}
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return v, off
}

// Decode parses data with DefaultMaxDepth.
func Decode(data []byte) []Field {
	return DecodeDepth(data, DefaultMaxDepth)
}

// DecodeDepth parses data, recursing into length-delimited payloads until
// maxDepth levels have been opened.
func DecodeDepth(data []byte, maxDepth int) []Field {
	return decode(data, maxDepth, 0)
}

func decode(data []byte, maxDepth, depth int) []Field {
	if depth >= maxDepth || len(data) == 0 {
		return nil
	}

	var fields []Field
	off := 0
	for off < len(data) {
		var tag uint64
		tag, off = DecodeVarint(data, off)

		f := Field{
			Number: tag >> 3,
			Type:   Type(tag & 0x07),
			Offset: off,
		}

		switch f.Type {
		case TypeVarint:
			f.Value, off = DecodeVarint(data, off)

		case TypeFixed64:
			if len(data)-off < 8 {
				return fields
			}
			f.Raw = data[off : off+8]
			f.Value = binary.LittleEndian.Uint64(f.Raw)
			off += 8

		case TypeBytes:
			var n uint64
			n, off = DecodeVarint(data, off)
			if n > uint64(len(data)-off) {
				return fields
			}
			end := off + int(n)
			f.Raw = data[off:end]
			off = end
			if n > 0 {
				f.Children = decode(f.Raw, maxDepth, depth+1)
			}

		case TypeFixed32:
			if len(data)-off < 4 {
				return fields
			}
			f.Raw = data[off : off+4]
			f.Value = uint64(binary.LittleEndian.Uint32(f.Raw))
			off += 4

		default:
			return fields
		}

		fields = append(fields, f)
	}
	return fields
}
