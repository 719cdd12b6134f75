// Package envelope extracts the item array from list responses regardless of
// which envelope key the backend wrapped it in.
//
// The backend answers list endpoints with a bare array on some routes and with
// objects such as {"data": [...]}, {"vehicles": [...]} or {"allBookings": [...]}
// on others. Unwrap never fails: anything it cannot interpret yields an empty
// slice, which callers render as "no items".
package envelope

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Unwrap returns the items of a raw JSON list response.
//
// Resolution order:
//  1. a top-level array is returned as is;
//  2. for an object, the first key of preferredKeys holding an array;
//  3. otherwise the first array-valued member in document order;
//  4. otherwise an empty slice.
//
// Items are decoded into plain Go values (map[string]any, []any, string,
// json.Number, bool, nil). Numbers keep their source text so that ids beyond
// 2^53 stay distinct. The returned slice is never nil.
func Unwrap(raw []byte, preferredKeys []string) []any {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return []any{}
	}
	return fromResult(gjson.ParseBytes(raw), preferredKeys)
}

// UnwrapString is Unwrap for a string body.
func UnwrapString(raw string, preferredKeys []string) []any {
	return Unwrap([]byte(raw), preferredKeys)
}

func fromResult(doc gjson.Result, preferredKeys []string) []any {
	if doc.IsArray() {
		return toSlice(doc)
	}
	if !doc.IsObject() {
		return []any{}
	}

	for _, key := range preferredKeys {
		if key == "" {
			continue
		}
		if v := doc.Get(gjson.Escape(key)); v.IsArray() {
			return toSlice(v)
		}
	}

	var found gjson.Result
	doc.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			found = value
			return false
		}
		return true
	})
	if found.Exists() {
		return toSlice(found)
	}
	return []any{}
}

func toSlice(arr gjson.Result) []any {
	elems := arr.Array()
	out := make([]any, 0, len(elems))
	for _, e := range elems {
		out = append(out, value(e))
	}
	return out
}

// value is gjson.Result.Value with numbers left as json.Number.
func value(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.JSON:
		if r.IsArray() {
			return toSlice(r)
		}
		m := make(map[string]any)
		r.ForEach(func(k, v gjson.Result) bool {
			m[k.Str] = value(v)
			return true
		})
		return m
	default:
		return nil
	}
}

// UnwrapValue applies the same resolution to an already decoded value.
// Go maps carry no member order, so the last-resort scan visits keys in
// sorted order to stay deterministic.
func UnwrapValue(raw any, preferredKeys []string) []any {
	switch v := raw.(type) {
	case nil:
		return []any{}
	case []any:
		return v
	case map[string]any:
		for _, key := range preferredKeys {
			if arr, ok := v[key].([]any); ok {
				return arr
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				return arr
			}
		}
		return []any{}
	default:
		return []any{}
	}
}

// DefaultKeys returns the conventional envelope keys for a resource:
// "data", the plural resource name and its "all" variant, e.g.
// ["data", "bookings", "allBookings"].
func DefaultKeys(resource string) []string {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return []string{"data"}
	}
	title := cases.Title(language.Und, cases.NoLower).String(resource)
	return []string{"data", resource, "all" + title}
}
