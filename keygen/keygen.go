// Package keygen builds deterministic cache keys from heterogeneous
// argument tuples. Each part is rendered to a type-tagged canonical form
// before hashing, so values of different types that print identically
// (123 vs "123") still produce different keys, and reordering or
// adding/removing parts always changes the key.
package keygen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Key returns a fixed-length hex key over the canonical encoding of parts.
// Identical ordered inputs always yield the identical key. Key() with no
// parts is defined and constant.
func Key(parts ...any) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		writePart(&b, p)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// writePart renders one value as tag ':' canonical-payload. The payload is
// escaped so the part separator '|' and the nesting delimiters cannot occur
// unescaped, which keeps adjacent parts from colliding.
func writePart(b *strings.Builder, p any) {
	switch v := p.(type) {
	case nil:
		b.WriteString("z:")
	case string:
		b.WriteString("s:")
		writeEscaped(b, v)
	case bool:
		if v {
			b.WriteString("b:1")
		} else {
			b.WriteString("b:0")
		}
	case int:
		writeInt(b, int64(v))
	case int8:
		writeInt(b, int64(v))
	case int16:
		writeInt(b, int64(v))
	case int32:
		writeInt(b, int64(v))
	case int64:
		writeInt(b, v)
	case uint:
		writeUint(b, uint64(v))
	case uint8:
		writeUint(b, uint64(v))
	case uint16:
		writeUint(b, uint64(v))
	case uint32:
		writeUint(b, uint64(v))
	case uint64:
		writeUint(b, v)
	case float32:
		writeFloat(b, float64(v))
	case float64:
		writeFloat(b, v)
	case []byte:
		b.WriteString("x:")
		b.WriteString(hex.EncodeToString(v))
	case []any:
		b.WriteString("l:[")
		for i, e := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writePart(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		// sorted keys so map iteration order cannot leak into the key
		names := make([]string, 0, len(v))
		for k := range v {
			names = append(names, k)
		}
		sort.Strings(names)
		b.WriteString("m:{")
		for i, k := range names {
			if i > 0 {
				b.WriteByte(',')
			}
			writeEscaped(b, k)
			b.WriteByte('=')
			writePart(b, v[k])
		}
		b.WriteByte('}')
	case fmt.Stringer:
		b.WriteString("r:")
		writeEscaped(b, fmt.Sprintf("%T", p))
		b.WriteByte('=')
		writeEscaped(b, v.String())
	default:
		// last resort: tag with the concrete type name so distinct types
		// with the same printed form stay distinct
		b.WriteString("v:")
		writeEscaped(b, fmt.Sprintf("%T", p))
		b.WriteByte('=')
		writeEscaped(b, fmt.Sprintf("%v", p))
	}
}

func writeInt(b *strings.Builder, v int64) {
	b.WriteString("i:")
	b.WriteString(strconv.FormatInt(v, 10))
}

func writeUint(b *strings.Builder, v uint64) {
	b.WriteString("u:")
	b.WriteString(strconv.FormatUint(v, 10))
}

func writeFloat(b *strings.Builder, v float64) {
	b.WriteString("f:")
	if math.IsNaN(v) {
		b.WriteString("nan")
		return
	}
	b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

// writeEscaped copies s while backslash-escaping every character that has
// structural meaning in the canonical form.
func writeEscaped(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '|', ',', '=', '[', ']', '{', '}':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
}
