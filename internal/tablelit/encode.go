package tablelit

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Marshal renders v in table-literal form. It accepts the same shapes Parse
// produces (plus int and []string) and writes map keys in sorted order.
func Marshal(v any) (string, error) {
	var b strings.Builder
	if err := encodeValue(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func encodeValue(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("nil")
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case string:
		writeQuoted(b, val)
	case int:
		b.WriteString(strconv.Itoa(val))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("marshal table literal: unsupported number %v", val)
		}
		b.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case []string:
		b.WriteByte('{')
		for i, s := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeQuoted(b, s)
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('{')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('[')
			writeQuoted(b, k)
			b.WriteString("]=")
			if err := encodeValue(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("marshal table literal: unsupported type %T", v)
	}
	return nil
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
