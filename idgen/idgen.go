// Package idgen generates the identifiers ultradoc hands out: conversion
// ids stored by the store package and request ids attached by the server.
package idgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// ConversionPrefix scopes conversion ids.
const ConversionPrefix = "cnv_"

// ErrBadID is returned for identifiers that do not parse.
var ErrBadID = errors.New("idgen: invalid id")

// NanoID returns a Generator of base-36 ids of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings. The ids sort by
// creation time.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every id of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

var (
	// Conversion generates stored conversion ids: "cnv_" + UUIDv7.
	Conversion = Prefixed(ConversionPrefix, UUIDv7())
	// Request generates short request ids for logs and response headers.
	Request = Prefixed("req_", NanoID(12))
)

// ParseConversion validates a conversion id and returns it in canonical
// lower-case form.
func ParseConversion(s string) (string, error) {
	rest, ok := strings.CutPrefix(s, ConversionPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q lacks prefix %q", ErrBadID, s, ConversionPrefix)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadID, err)
	}
	if u.Version() != 7 {
		return "", fmt.Errorf("%w: uuid version %d", ErrBadID, u.Version())
	}
	return ConversionPrefix + u.String(), nil
}
