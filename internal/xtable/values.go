package xtable

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/surrealdb/surrealdb.go/pkg/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Row is a record in JSON shape, as stored or as sent to the client.
type Row = map[string]any

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// RecordIDString renders a SurrealDB record id as "table:id". Strings are
// returned unchanged and unknown shapes render as "".
func RecordIDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case models.RecordID:
		return fmt.Sprintf("%s:%v", id.Table, id.ID)
	case *models.RecordID:
		if id == nil {
			return ""
		}
		return fmt.Sprintf("%s:%v", id.Table, id.ID)
	case map[string]any:
		if inner, ok := id["id"]; ok {
			if tb, ok := id["tb"].(string); ok {
				return tb + ":" + fmt.Sprint(inner)
			}
			return RecordIDString(inner)
		}
	}
	return ""
}

// QualifyID prefixes a bare id with table. It reports false when id already
// names a different table or is empty.
func QualifyID(table, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	tb, rest, found := strings.Cut(id, ":")
	if !found {
		return table + ":" + id, true
	}
	if tb != table || rest == "" {
		return "", false
	}
	return id, true
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	case nil:
		return "", false
	}
	return fmt.Sprint(v), true
}

// AsInt64 converts the numeric shapes JSON and CBOR decoding produce.
func AsInt64(v any) (int64, bool) {
	return toInt64(v)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// AsTime converts stored and client datetime shapes.
func AsTime(v any) (time.Time, bool) {
	return toTime(v)
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case models.CustomDateTime:
		return t.Time, true
	case *models.CustomDateTime:
		if t == nil {
			return time.Time{}, false
		}
		return t.Time, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// foldedSuffix names the shadow column that holds a searchable member's
// folded text.
const foldedSuffix = "_folded"

// FoldedMember returns the shadow column for a searchable member.
func FoldedMember(member string) string { return member + foldedSuffix }

// Fold strips combining marks and lowercases s, so "Café" and "cafe" compare
// equal. Quick search compares folded text on both sides.
func Fold(s string) string {
	// transform chains carry state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Slugify folds accents, lowercases s and replaces runs of anything but
// ASCII letters and digits with a hyphen.
func Slugify(s string) string {
	folded := Fold(s)
	var sb strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case sb.Len() > 0 && !dash:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
