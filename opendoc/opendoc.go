// CLAUDE:SUMMARY Document acquisition: doc URL parsing, cookie files, EJS framing, opendoc response validation.
// Package opendoc fetches collaborative-document exports from the opendoc
// endpoint and validates them.
//
// The endpoint answers either with JSON or with "EJS" framing: one or more
// "head\njson\n<length>\n<json>" blocks whose top-level keys are merged.
package opendoc

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"
)

var (
	// ErrBadURL is returned when a document URL carries no /doc/<id> path.
	ErrBadURL = errors.New("opendoc: cannot parse document url")
	// ErrNotEJS is returned by ParseEJS for data without EJS framing or
	// without any decodable block.
	ErrNotEJS = errors.New("opendoc: not an EJS response")
	// ErrInvalidResponse is returned when a response does not hold a
	// readable document.
	ErrInvalidResponse = errors.New("opendoc: invalid response")
)

// DocRef identifies a document on the opendoc endpoint.
type DocRef struct {
	ID    string
	Scode string
}

var (
	docScodeRe = regexp.MustCompile(`/doc/([^?/]+)\?scode=([^&]+)`)
	docIDRe    = regexp.MustCompile(`/doc/([^?/]+)`)
)

// ParseDocURL extracts the document id and optional share code from a
// document URL such as https://doc.weixin.qq.com/doc/<id>?scode=<scode>.
func ParseDocURL(raw string) (DocRef, error) {
	if m := docScodeRe.FindStringSubmatch(raw); m != nil {
		return DocRef{ID: m[1], Scode: m[2]}, nil
	}
	if m := docIDRe.FindStringSubmatch(raw); m != nil {
		return DocRef{ID: m[1]}, nil
	}
	return DocRef{}, fmt.Errorf("%w: %q", ErrBadURL, raw)
}

// Query returns the opendoc API query parameters for r: full JSON output,
// unescaped, not chunked.
func (r DocRef) Query() url.Values {
	return url.Values{
		"id":             {r.ID},
		"scode":          {r.Scode},
		"outformat":      {"1"},
		"normal":         {"1"},
		"noEscape":       {"1"},
		"doc_chunk_flag": {"0"},
		"commandsFormat": {"1"},
	}
}

const ejsHeader = "head\njson\n"

// IsEJS reports whether data starts with EJS framing.
func IsEJS(data []byte) bool {
	return strings.HasPrefix(string(data[:min(len(data), len(ejsHeader))]), ejsHeader)
}

// ParseEJS decodes EJS-framed data. The first decodable block is the base;
// later blocks add missing top-level keys and merge object values into
// existing object keys. Block lengths count code points. A block that does
// not decode is skipped.
func ParseEJS(data []byte) (map[string]any, error) {
	if !IsEJS(data) {
		return nil, ErrNotEJS
	}
	text := []rune(string(data))
	header := []rune(ejsHeader)

	var result map[string]any
	pos := 0
	for pos < len(text) && hasPrefix(text[pos:], header) {
		rest := text[pos+len(header):]
		nl := indexRune(rest, '\n')
		if nl < 0 {
			break
		}
		lengthText := string(rest[:nl])
		length, err := strconv.Atoi(strings.TrimSpace(lengthText))
		if err != nil {
			break
		}
		body := rest[nl+1:]
		if length > 0 && length < len(body) {
			body = body[:length]
		}

		if block, ok := decodeObject(string(body)); ok {
			result = mergeBlock(result, block)
		}
		pos += len(header) + len([]rune(lengthText)) + 1 + length
		for pos < len(text) && text[pos] == '\n' {
			pos++
		}
		if length <= 0 {
			break
		}
	}

	if result == nil {
		return nil, fmt.Errorf("%w: no decodable block", ErrNotEJS)
	}
	return result, nil
}

func decodeObject(s string) (map[string]any, bool) {
	v, err := oj.ParseString(s)
	if err != nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func mergeBlock(base, block map[string]any) map[string]any {
	if base == nil {
		return block
	}
	for k, v := range block {
		cur, exists := base[k]
		if !exists {
			base[k] = v
			continue
		}
		dst, ok1 := cur.(map[string]any)
		src, ok2 := v.(map[string]any)
		if ok1 && ok2 {
			for sk, sv := range src {
				dst[sk] = sv
			}
		}
	}
	return base
}

// ValidateResponse checks that a decoded response carries a document the
// current session may read.
func ValidateResponse(data map[string]any) error {
	if code, ok := data["errcode"]; ok && !isZero(code) {
		msg, _ := data["errmsg"].(string)
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("%w: api error %v: %s", ErrInvalidResponse, code, msg)
	}

	clientVars, _ := data["clientVars"].(map[string]any)
	if len(clientVars) == 0 {
		return fmt.Errorf("%w: missing clientVars, cookies may be invalid or expired", ErrInvalidResponse)
	}
	if userInfo, _ := clientVars["userInfo"].(map[string]any); len(userInfo) == 0 {
		return fmt.Errorf("%w: missing userInfo, cookies may have expired", ErrInvalidResponse)
	}

	collab, _ := clientVars["collab_client_vars"].(map[string]any)
	iat, _ := collab["initialAttributedText"].(map[string]any)
	switch text := iat["text"].(type) {
	case []any:
		if len(text) == 0 {
			return fmt.Errorf("%w: empty document content, log in again for fresh cookies", ErrInvalidResponse)
		}
		if s, ok := text[0].(string); ok && s == "" {
			return fmt.Errorf("%w: empty document content, log in again for fresh cookies", ErrInvalidResponse)
		}
	case string:
		if rev := toInt(collab["rev"]); text == "" && rev > 0 {
			return fmt.Errorf("%w: document has %d revisions but no content, cookies may have expired", ErrInvalidResponse, rev)
		}
	}
	return nil
}

func isZero(v any) bool { return toInt(v) == 0 && fmt.Sprint(v) == "0" }

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func hasPrefix(s, prefix []rune) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

func indexRune(s []rune, r rune) int {
	for i, c := range s {
		if c == r {
			return i
		}
	}
	return -1
}
