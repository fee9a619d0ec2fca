package wire

import (
	"bytes"
	"math"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 300, 16383, 16384, 1<<21 - 1, 1 << 21, 1<<28 - 1, 1 << 28, 1<<35 - 1}
	for v := uint64(1); v < 1<<35; v = v*3 + 7 {
		values = append(values, v)
	}

	for _, v := range values {
		enc := AppendVarint(nil, v)
		got, next := DecodeVarint(enc, 0)
		if got != v {
			t.Errorf("DecodeVarint(%d): got %d", v, got)
		}
		if next != len(enc) {
			t.Errorf("DecodeVarint(%d): consumed %d bytes, want %d", v, next, len(enc))
		}
	}
}

func TestDecodeVarint_Truncated(t *testing.T) {
	// Continuation bit set on the last byte: decoder stops at end of buffer.
	v, next := DecodeVarint([]byte{0x96, 0x81}, 0)
	if next != 2 {
		t.Fatalf("next: got %d, want 2", next)
	}
	if v != 0x16|0x01<<7 {
		t.Fatalf("value: got %d", v)
	}
}

func TestDecode_AllWireTypes(t *testing.T) {
	var b []byte
	b = AppendVarintField(b, 1, 150)
	b = AppendFixed64Field(b, 2, math.Float64bits(12.5))
	b = AppendStringField(b, 3, "hi")
	b = AppendFixed32Field(b, 4, math.Float32bits(10.5))

	fields := Decode(b)
	if len(fields) != 4 {
		t.Fatalf("fields: got %d, want 4", len(fields))
	}
	if fields[0].Number != 1 || fields[0].Type != TypeVarint || fields[0].Value != 150 {
		t.Errorf("field 1: %+v", fields[0])
	}
	if fields[1].Type != TypeFixed64 || math.Float64frombits(fields[1].Value) != 12.5 || len(fields[1].Raw) != 8 {
		t.Errorf("field 2: %+v", fields[1])
	}
	if fields[2].Type != TypeBytes || fields[2].Text() != "hi" {
		t.Errorf("field 3: %+v", fields[2])
	}
	if fields[3].Type != TypeFixed32 || math.Float32frombits(uint32(fields[3].Value)) != 10.5 {
		t.Errorf("field 4: %+v", fields[3])
	}
}

func TestDecode_Nested(t *testing.T) {
	inner := AppendVarintField(nil, 1, 7)
	inner = AppendStringField(inner, 2, "x")
	outer := AppendBytesField(nil, 5, inner)

	fields := Decode(outer)
	if len(fields) != 1 {
		t.Fatalf("fields: got %d", len(fields))
	}
	c, ok := fields[0].Child(1)
	if !ok || c.Value != 7 {
		t.Fatalf("child 1: %+v ok=%v", c, ok)
	}
	if got := fields[0].ChildrenNumbered(2); len(got) != 1 || got[0].Text() != "x" {
		t.Fatalf("children 2: %+v", got)
	}
}

func TestDecode_LengthOverrun(t *testing.T) {
	var b []byte
	b = AppendVarintField(b, 1, 5)
	b = AppendStringField(b, 2, "ok")
	// Declares 10 bytes, provides 3.
	b = AppendTag(b, 3, TypeBytes)
	b = AppendVarint(b, 10)
	b = append(b, 'a', 'b', 'c')

	fields := Decode(b)
	if len(fields) != 2 {
		t.Fatalf("fields: got %d, want 2", len(fields))
	}
	if fields[0].Value != 5 || fields[1].Text() != "ok" {
		t.Fatalf("previous fields altered: %+v", fields)
	}
}

func TestDecode_GroupTypeStops(t *testing.T) {
	var b []byte
	b = AppendVarintField(b, 1, 1)
	b = AppendTag(b, 2, TypeStartGroup)
	b = AppendVarintField(b, 3, 3)

	fields := Decode(b)
	if len(fields) != 1 {
		t.Fatalf("fields: got %d, want 1", len(fields))
	}
}

func TestDecode_ShortFixed(t *testing.T) {
	b := AppendVarintField(nil, 1, 1)
	b = AppendTag(b, 2, TypeFixed64)
	b = append(b, 1, 2, 3)
	if fields := Decode(b); len(fields) != 1 {
		t.Fatalf("fields: got %d, want 1", len(fields))
	}

	b = AppendVarintField(nil, 1, 1)
	b = AppendTag(b, 2, TypeFixed32)
	b = append(b, 1)
	if fields := Decode(b); len(fields) != 1 {
		t.Fatalf("fields: got %d, want 1", len(fields))
	}
}

func TestDecode_DepthCap(t *testing.T) {
	payload := AppendVarintField(nil, 1, 42)
	for i := 0; i < 30; i++ {
		payload = AppendBytesField(nil, 1, payload)
	}

	depth := 0
	fields := DecodeDepth(payload, 5)
	for len(fields) > 0 {
		depth++
		fields = fields[0].Children
	}
	if depth != 5 {
		t.Fatalf("depth: got %d, want 5", depth)
	}
}

func TestDecode_Empty(t *testing.T) {
	if fields := Decode(nil); fields != nil {
		t.Fatalf("expected nil, got %+v", fields)
	}
}

func TestLossyString(t *testing.T) {
	got := LossyString([]byte{'a', 0xff, 'b', 0xe4, 0xb8, 0xad})
	if got != "ab中" {
		t.Fatalf("got %q", got)
	}
}

func TestAppendTag(t *testing.T) {
	if got := AppendTag(nil, 2, TypeBytes); !bytes.Equal(got, []byte{0x12}) {
		t.Fatalf("got %x", got)
	}
}
