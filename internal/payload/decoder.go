// Package payload decodes the item lists embedded in log lines. A list is
// either a plain ';'-separated run of identifiers or a packed payload: base64
// text of a gzip stream holding a table literal with a cards collection.
package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/samber/lo"

	"github.com/cschnabel/mplog/internal/tablelit"
)

// PackedPrefix starts every packed payload. Base64 of a gzip header always begins "H4sI".
const PackedPrefix = "H4"

const (
	unsafeKeyword  = "function"
	maxInflateSize = 4 << 20
)

var (
	ErrUnsafePayload = errors.New("payload contains executable code")
	ErrTooLarge      = errors.New("payload inflates past size limit")
)

// IsPacked reports whether s carries the packed-payload prefix.
func IsPacked(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), PackedPrefix)
}

// SplitList splits a ';'-separated list, trimming entries and dropping empties.
func SplitList(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// DecodeItems returns the item identifiers carried by s. Any failure returns
// a nil slice with the error; callers decide whether an empty list is acceptable.
func DecodeItems(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !IsPacked(s) {
		return SplitList(s), nil
	}

	text, err := Inflate(s)
	if err != nil {
		return nil, err
	}
	if strings.Contains(text, unsafeKeyword) {
		return nil, ErrUnsafePayload
	}

	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "return")

	value, err := tablelit.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse payload table: %w", err)
	}
	return cardCenters(value), nil
}

// Inflate base64-decodes and gunzips a packed payload.
func Inflate(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("decode payload base64: %w", err)
	}

	reader, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open payload gzip: %w", err)
	}
	defer reader.Close()

	inflated, err := io.ReadAll(io.LimitReader(reader, maxInflateSize+1))
	if err != nil {
		return "", fmt.Errorf("inflate payload: %w", err)
	}
	if len(inflated) > maxInflateSize {
		return "", ErrTooLarge
	}
	return string(inflated), nil
}

// Pack is the inverse of Inflate: gzip then base64.
func Pack(text string) (string, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("gzip payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close payload gzip: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func cardCenters(value any) []string {
	root, ok := value.(map[string]any)
	if !ok {
		return []string{}
	}

	return lo.FilterMap(orderedEntries(root["cards"]), func(card any, _ int) (string, bool) {
		fields, ok := card.(map[string]any)
		if !ok {
			return "", false
		}
		saveFields, ok := fields["save_fields"].(map[string]any)
		if !ok {
			return "", false
		}
		center, ok := saveFields["center"].(string)
		return center, ok && center != ""
	})
}

// orderedEntries flattens a sequence, or a map keyed by positions, into slot order.
func orderedEntries(v any) []any {
	switch coll := v.(type) {
	case []any:
		return coll
	case map[string]any:
		keys := lo.Keys(coll)
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.ParseFloat(keys[i], 64)
			b, errB := strconv.ParseFloat(keys[j], 64)
			switch {
			case errA == nil && errB == nil:
				return a < b
			case errA == nil:
				return true
			case errB == nil:
				return false
			default:
				return keys[i] < keys[j]
			}
		})
		return lo.Map(keys, func(k string, _ int) any { return coll[k] })
	default:
		return nil
	}
}
