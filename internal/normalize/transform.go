package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EmptyText is the placeholder shown for missing display text.
const EmptyText = "—"

// Text trims strings and formats numbers and booleans.
func Text(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return nil, false
	}
}

// Lower is Text folded to lower case; used for fields that filters match on.
func Lower(v any) (any, bool) {
	s, ok := Text(v)
	if !ok {
		return nil, false
	}
	return strings.ToLower(s.(string)), true
}

// ID formats identity values. Mongo extended JSON ({"$oid": "..."}) is unwrapped.
func ID(v any) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		v = m["$oid"]
	}
	return Text(v)
}

// Integer coerces numbers and numeric strings to int.
func Integer(v any) (any, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		f, err := t.Float64()
		return int(f), err == nil
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return int(f), err == nil
	default:
		return nil, false
	}
}

// Float coerces numbers and numeric strings to float64.
func Float(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(cleanNumber(t), 64)
		return f, err == nil
	default:
		f, ok := toFloat(v)
		return f, ok
	}
}

// Money coerces prices to decimal, accepting strings such as "₹1,250.50".
func Money(v any) (any, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(cleanNumber(t))
		return d, err == nil
	default:
		return nil, false
	}
}

// Bool accepts booleans and "true"/"false"-like strings.
func Bool(v any) (any, bool) {
	b, ok := boolValue(v)
	return b, ok
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
	time.RFC1123,
	time.RFC1123Z,
}

// minEpochDigits is the shortest integer part a numeric string needs to be
// read as an epoch timestamp, so that values such as "2024" are rejected.
const minEpochDigits = 9

// Date parses ISO-8601 variants, plain dates and epoch timestamps
// (milliseconds when larger than 1e11, seconds otherwise). Results are UTC.
func Date(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if !epochString(s) {
			return nil, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return epoch(f), true
	case float64:
		return epoch(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, false
		}
		return epoch(f), true
	case time.Time:
		return t.UTC(), true
	default:
		return nil, false
	}
}

func epoch(f float64) time.Time {
	if f > 1e11 {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Unix(int64(f), 0).UTC()
}

func epochString(s string) bool {
	whole, frac, _ := strings.Cut(s, ".")
	return len(whole) >= minEpochDigits && digits(whole) && digits(frac)
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func boolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	case float64:
		return t != 0, true
	case json.Number:
		f, err := t.Float64()
		return f != 0, err == nil
	default:
		return false, false
	}
}

// cleanNumber drops currency symbols, spaces and thousands separators.
func cleanNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
