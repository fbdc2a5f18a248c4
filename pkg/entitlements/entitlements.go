// Package entitlements decodes the entitlements property list embedded in a
// code signature.
package entitlements

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/blacktop/go-plist"
)

// PreviewSize is the number of bytes shown by the CLI preview.
const PreviewSize = 100

// Well known keys.
const (
	GetTaskAllow      = "get-task-allow"
	ApplicationGroups = "com.apple.security.application-groups"
)

// Entitlements is a decoded entitlements dictionary.
type Entitlements map[string]any

// Decode decodes raw, the payload of an entitlements blob without its 8 byte
// header. XML, binary and OpenStep property lists are accepted.
func Decode(raw []byte) (Entitlements, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Entitlements{}, nil
	}
	var ents Entitlements
	if err := plist.NewDecoder(bytes.NewReader(raw)).Decode(&ents); err != nil {
		return nil, fmt.Errorf("failed to decode entitlements plist: %w", err)
	}
	if ents == nil {
		ents = Entitlements{}
	}
	return ents, nil
}

// Keys returns the entitlement keys in sorted order.
func (e Entitlements) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bool reports whether key is present and set to true.
func (e Entitlements) Bool(key string) bool {
	b, ok := e[key].(bool)
	return ok && b
}

// Strings returns the string array value of key. Non-string elements are
// skipped.
func (e Entitlements) Strings(key string) []string {
	arr, ok := e[key].([]any)
	if !ok {
		if s, ok := e[key].(string); ok {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Preview returns at most the first n bytes of raw as text. A cut that would
// split a UTF-8 sequence is moved back to the previous rune boundary.
func Preview(raw []byte, n int) string {
	if n < 0 || n >= len(raw) {
		return string(raw)
	}
	for n > 0 && !utf8.RuneStart(raw[n]) {
		n--
	}
	return string(raw[:n])
}
