// Package ultrabuftest builds ultrabuf payloads and envelopes for tests.
package ultrabuftest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/ultradoc/ultrabuf"
	"github.com/hazyhaar/ultradoc/wire"
)

// Payload wraps Mutation entries the way documents carry them.
func Payload(version uint64, entries ...[]byte) []byte {
	inner := wire.AppendVarintField(nil, 1, version)
	for _, e := range entries {
		inner = wire.AppendBytesField(inner, 2, e)
	}
	return wire.AppendBytesField(nil, 1, inner)
}

// Entry concatenates encoded Mutation fields.
func Entry(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func Type(t ultrabuf.MutationType) []byte { return wire.AppendVarintField(nil, 1, uint64(t)) }

func Begin(v uint64) []byte {
	return wire.AppendBytesField(nil, 2, wire.AppendVarintField(nil, 1, v))
}

func End(v uint64) []byte {
	return wire.AppendBytesField(nil, 3, wire.AppendVarintField(nil, 1, v))
}

func Text(s string) []byte {
	return wire.AppendBytesField(nil, 6, wire.AppendStringField(nil, 1, s))
}

func Author(s string) []byte { return wire.AppendStringField(nil, 7, s) }

func Status(v uint64) []byte { return wire.AppendVarintField(nil, 8, v) }

// Prop encodes a single group.key = value property.
func Prop(group, key string, value []byte) []byte {
	e := wire.AppendStringField(nil, 1, key)
	e = append(e, value...)
	g := wire.AppendStringField(nil, 1, group)
	g = wire.AppendBytesField(g, 2, e)
	return wire.AppendBytesField(nil, 6, wire.AppendBytesField(nil, 1, g))
}

// Val encodes a {"val": n} property value.
func Val(n uint64) []byte {
	return wire.AppendBytesField(nil, 2, wire.AppendVarintField(nil, 1, n))
}

// SampleText is the buffer of SamplePayload.
const SampleText = "Title\rSee \x13HYPERLINK \"http://example.com\"\x14Example\x15\r\x08-item\r"

// SamplePayload is a small document: a level-1 heading, a paragraph with
// one hyperlink and a bullet list item.
func SamplePayload() []byte {
	return Payload(7,
		Entry(Type(ultrabuf.InsertString), Begin(0), Text(SampleText)),
		Entry(Type(ultrabuf.ModifyProperty), Begin(0), End(6),
			Status(ultrabuf.ParagraphProperty), Prop("paragraph", "outlineLvl", Val(0))),
	)
}

// Encoded returns the escaped Base64 form carried by envelopes.
func Encoded(payload []byte) string {
	return base64.StdEncoding.EncodeToString(payload)
}

// Envelope wraps payload in an opendoc JSON envelope.
func Envelope(payload []byte) []byte {
	env := map[string]any{
		"clientVars": map[string]any{
			"collab_client_vars": map[string]any{
				"initialAttributedText": map[string]any{
					"text": []any{Encoded(payload)},
				},
				"rev": 3,
			},
			"userInfo": map[string]any{"uid": "144115210000000000"},
		},
	}
	b, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return b
}

// EJS frames envelope as an opendoc EJS response with one json block.
func EJS(envelope []byte) []byte {
	return []byte(fmt.Sprintf("head\njson\n%d\n%s\n", len(envelope), envelope))
}
