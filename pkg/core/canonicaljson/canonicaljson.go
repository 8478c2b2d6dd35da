// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package canonicaljson implements the deterministic JSON encoding that
// block hashing depends on: object keys sorted lexicographically
// (recursively), no insignificant whitespace, UTF-8 output. encoding/json's
// struct marshaling preserves declaration order rather than sorting keys,
// so it cannot be used directly for anything that feeds a hash.
package canonicaljson

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Marshal encodes v into its canonical form. v must be built from the
// subset of Go values that JSON can represent: map[string]interface{},
// []interface{}, string, bool, nil, and the numeric helpers Int/Uint/Float
// defined in this package. Using bare Go int/float64 is deliberately
// rejected, forcing callers to pick a number representation explicitly
// instead of leaving it to reflection.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Int wraps an integer so it canonicalizes as a bare JSON number.
type Int int64

// Uint wraps an unsigned integer so it canonicalizes as a bare JSON number.
type Uint uint64

// Float wraps a float64 so it canonicalizes using the shortest decimal
// representation that round-trips, matching the source's float repr for
// the epoch-second timestamps this codec carries.
type Float float64

func encode(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		encodeString(buf, val)
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case Float:
		buf.WriteString(formatFloat(float64(val)))
	case map[string]interface{}:
		return encodeObject(buf, val)
	case []interface{}:
		return encodeArray(buf, val)
	default:
		return fmt.Errorf("canonicaljson: unsupported type %T", v)
	}
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]interface{}) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k)
		buf.WriteByte(':')
		if err := encode(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, e := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, e); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// encodeString writes a JSON string literal, escaping the same way
// encoding/json does for the ASCII control characters and the quote and
// backslash characters this codec ever produces (addresses and ids are
// plain ASCII identifiers in this system).
func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// formatFloat renders f as the shortest decimal that round-trips, in
// plain notation (no exponent form). An integral value carries no
// fractional part: 0 renders as "0" and 100 as "100", where Python's
// json.dumps would write "0.0" and "100.0" for a float.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
