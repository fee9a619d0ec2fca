package ultrabuf

import (
	"bytes"

	"github.com/hazyhaar/ultradoc/wire"
)

// payload wraps Mutation entries the way documents carry them.
func payload(version uint64, entries ...[]byte) []byte {
	inner := wire.AppendVarintField(nil, 1, version)
	for _, e := range entries {
		inner = wire.AppendBytesField(inner, 2, e)
	}
	return wire.AppendBytesField(nil, 1, inner)
}

func entry(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func tyField(t MutationType) []byte { return wire.AppendVarintField(nil, 1, uint64(t)) }

func beginField(v uint64) []byte {
	return wire.AppendBytesField(nil, 2, wire.AppendVarintField(nil, 1, v))
}

func endField(v uint64) []byte {
	return wire.AppendBytesField(nil, 3, wire.AppendVarintField(nil, 1, v))
}

func textField(s string) []byte {
	return wire.AppendBytesField(nil, 6, wire.AppendStringField(nil, 1, s))
}

func authorField(s string) []byte { return wire.AppendStringField(nil, 7, s) }

func statusField(v uint64) []byte { return wire.AppendVarintField(nil, 8, v) }

// propField encodes a single group.key = value property.
func propField(group, key string, value []byte) []byte {
	e := wire.AppendStringField(nil, 1, key)
	e = append(e, value...)
	g := wire.AppendStringField(nil, 1, group)
	g = wire.AppendBytesField(g, 2, e)
	return wire.AppendBytesField(nil, 6, wire.AppendBytesField(nil, 1, g))
}

func valValue(n uint64) []byte {
	return wire.AppendBytesField(nil, 2, wire.AppendVarintField(nil, 1, n))
}
