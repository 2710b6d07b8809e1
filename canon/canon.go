package canon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Canonicalize serializes v into the byte-exact JCS-subset form defined in
// spec §4.1. Two Values that are deep-structurally equal always produce
// byte-identical output (spec invariant #2); this is the only function
// DigestEngine and Signer read bytes from.
func Canonicalize(v Value) ([]byte, error) {
	var b strings.Builder
	if err := encode(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func encode(b *strings.Builder, v Value) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case Null:
		b.WriteString("null")
	case Bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Int:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case Str:
		encodeString(b, string(t))
	case Seq:
		return encodeSeq(b, t)
	case *Obj:
		return encodeObj(b, t)
	default:
		return fmt.Errorf("%w: unrecognized value type %T", errUnsupported, v)
	}
	return nil
}

func encodeSeq(b *strings.Builder, s Seq) error {
	b.WriteByte('[')
	for i, e := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := encode(b, e); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

func encodeObj(b *strings.Builder, o *Obj) error {
	keys := o.Keys()
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		encodeString(b, k)
		b.WriteByte(':')
		val, _ := o.Get(k)
		if err := encode(b, val); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

// encodeString writes the minimal-length JSON escaping of s: the named
// two-character escapes for the control characters that have one, \uXXXX
// for the rest of the control range, and every other code point emitted
// as raw UTF-8 (no escaping of non-ASCII).
func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
