package ultrabuf

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var (
	// ErrMissingPayload is returned when the envelope lacks the encoded text.
	ErrMissingPayload = errors.New("ultrabuf: payload not found in envelope")
	// ErrInvalidBase64 is returned when the unescaped payload is not Base64.
	ErrInvalidBase64 = errors.New("ultrabuf: invalid base64 payload")
)

// PayloadPath locates the encoded document inside an opendoc envelope.
const PayloadPath = "$.clientVars.collab_client_vars.initialAttributedText.text[0]"

var payloadExpr = jp.MustParseString(PayloadPath)

var (
	unicodeEscapeRe = regexp.MustCompile(`%u([0-9a-fA-F]{4})`)
	byteEscapeRe    = regexp.MustCompile(`%([0-9a-fA-F]{2})`)
)

// Unescape reverses JavaScript escape(): %uXXXX sequences first, then %XX.
func Unescape(s string) string {
	s = unicodeEscapeRe.ReplaceAllStringFunc(s, func(m string) string {
		n, _ := strconv.ParseUint(m[2:], 16, 32)
		return string(rune(n))
	})
	return byteEscapeRe.ReplaceAllStringFunc(s, func(m string) string {
		n, _ := strconv.ParseUint(m[1:], 16, 8)
		return string(rune(n))
	})
}

// DecodePayload unescapes s and Base64-decodes it into the wire buffer.
func DecodePayload(s string) ([]byte, error) {
	u := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, Unescape(s))

	b, err := base64.StdEncoding.DecodeString(u)
	if err != nil {
		var rawErr error
		if b, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(u, "=")); rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
		}
	}
	return b, nil
}

// ExtractPayload returns the encoded text stored at PayloadPath in a JSON
// envelope.
func ExtractPayload(envelope []byte) (string, error) {
	root, err := oj.Parse(envelope)
	if err != nil {
		return "", fmt.Errorf("ultrabuf: parse envelope: %w", err)
	}
	return PayloadFrom(root)
}

// PayloadFrom is ExtractPayload over an already decoded envelope.
func PayloadFrom(root any) (string, error) {
	for _, v := range payloadExpr.Get(root) {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", ErrMissingPayload
}
