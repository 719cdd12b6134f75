// Package normalize maps heterogeneous backend objects onto canonical items
// through declarative field rules.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mohae/deepcopy"
	"github.com/shopspring/decimal"
)

// Item is a normalized resource record.
//
// Fields holds one entry per declared rule, keyed by canonical name, and
// always includes "id". Raw is the source object as received; it is shared,
// never written to, and kept for fallback rendering.
type Item struct {
	ID     string
	Fields map[string]any
	Raw    map[string]any
}

// Get returns the canonical field value.
func (i *Item) Get(name string) (any, bool) {
	if i == nil {
		return nil, false
	}
	v, ok := i.Fields[name]
	return v, ok
}

// String returns the field formatted as text. Missing fields yield "".
func (i *Item) String(name string) string {
	v, _ := i.Get(name)
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case decimal.Decimal:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Number returns the field as float64. Missing or non-numeric values count as 0.
func (i *Item) Number(name string) float64 {
	v, _ := i.Get(name)
	f, _ := toFloat(v)
	return f
}

// Decimal returns the field as a decimal. Missing or non-numeric values count as 0.
func (i *Item) Decimal(name string) decimal.Decimal {
	v, _ := i.Get(name)
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	default:
		f, ok := toFloat(v)
		if !ok {
			return decimal.Zero
		}
		return decimal.NewFromFloat(f)
	}
}

// Time returns the field as a time when it holds one.
func (i *Item) Time(name string) (time.Time, bool) {
	v, _ := i.Get(name)
	t, ok := v.(time.Time)
	return t, ok
}

// Clone returns a copy whose Fields can be changed without affecting i.
// Nested maps and slices are deep-copied; Raw stays shared.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	fields := make(map[string]any, len(i.Fields))
	for k, v := range i.Fields {
		switch v.(type) {
		case map[string]any, []any:
			fields[k] = deepcopy.Copy(v)
		default:
			fields[k] = v
		}
	}
	return &Item{ID: i.ID, Fields: fields, Raw: i.Raw}
}

// With returns a clone of i with one field replaced.
func (i *Item) With(name string, value any) *Item {
	c := i.Clone()
	c.Fields[name] = value
	if name == "id" {
		c.ID = fmt.Sprint(value)
	}
	return c
}

// Decode copies the canonical fields into a typed struct using
// `mapstructure` tags named after the canonical fields.
func (i *Item) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("normalize: building decoder: %w", err)
	}
	if err := dec.Decode(i.Fields); err != nil {
		return fmt.Errorf("normalize: decoding item %s: %w", i.ID, err)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case decimal.Decimal:
		return t.InexactFloat64(), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
