package ipn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Canonicalize re-serializes a JSON document so that semantically equal
// payloads produce identical bytes: object keys are sorted by byte
// order at every nesting level, array element order is preserved, and
// scalar literals are emitted exactly as received. The processor signs
// the sorted form of its payload, so verification must reproduce it
// bit-for-bit regardless of the key order on the wire.
//
// Numbers are the failure-prone case: re-encoding through float64 would
// rewrite literals like "1.50" or large integer ids. Decoding with
// json.Number keeps the original literal text untouched.
func Canonicalize(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("invalid JSON document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", fmt.Errorf("trailing data after JSON document")
	}

	var sb strings.Builder
	writeCanonical(&sb, doc)
	return sb.String(), nil
}

func writeCanonical(sb *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeString(sb, k)
			sb.WriteByte(':')
			writeCanonical(sb, val[k])
		}
		sb.WriteByte('}')
	case []interface{}:
		sb.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, elem)
		}
		sb.WriteByte(']')
	case json.Number:
		sb.WriteString(string(val))
	case string:
		writeString(sb, val)
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	default:
		// Only remaining decode result is JSON null.
		sb.WriteString("null")
	}
}

// writeString encodes s as a JSON string without HTML escaping, since
// the signing side does not escape '<', '>' or '&'.
func writeString(sb *strings.Builder, s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	sb.Write(bytes.TrimRight(buf.Bytes(), "\n"))
}
