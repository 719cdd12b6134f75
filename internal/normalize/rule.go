package normalize

import (
	"strings"
)

// Transform converts a present raw value into its canonical form.
// Returning false treats the value as unusable, and the next source key is tried.
type Transform func(v any) (any, bool)

// FieldRule resolves one canonical field.
type FieldRule struct {
	// Name is the canonical field name.
	Name string

	// Sources lists raw keys in priority order.
	Sources []string

	// Transform is applied to the first present source value. Nil keeps the value as is.
	Transform Transform

	// Derive computes the field from the whole raw object when no source matched.
	Derive func(raw map[string]any) (any, bool)

	// Empty is the value used when nothing resolved. It is explicit per field.
	Empty any
}

// DefaultIDKeys are the identity keys tried when no "id" rule is declared.
var DefaultIDKeys = []string{"_id", "id"}

// IDRule builds the identity rule for a resource: _id, id, then <singular>Id.
func IDRule(resource string) FieldRule {
	sources := append([]string{}, DefaultIDKeys...)
	if s := singular(resource); s != "" {
		sources = append(sources, s+"Id")
	}
	return FieldRule{Name: "id", Sources: sources, Transform: ID, Empty: ""}
}

// Normalize applies rules to raw and returns a new item. raw is not modified.
// Without an "id" rule the identity comes from DefaultIDKeys.
func Normalize(raw map[string]any, rules []FieldRule) *Item {
	if raw == nil {
		raw = map[string]any{}
	}
	item := &Item{Fields: make(map[string]any, len(rules)+1), Raw: raw}

	hasID := false
	for _, rule := range rules {
		item.Fields[rule.Name] = resolve(raw, rule)
		if rule.Name == "id" {
			hasID = true
		}
	}
	if !hasID {
		item.Fields["id"] = resolve(raw, FieldRule{Name: "id", Sources: DefaultIDKeys, Transform: ID, Empty: ""})
	}
	if id, ok := item.Fields["id"].(string); ok {
		item.ID = id
	}
	return item
}

func resolve(raw map[string]any, rule FieldRule) any {
	for _, key := range rule.Sources {
		v, ok := raw[key]
		if !present(v, ok) {
			continue
		}
		if rule.Transform == nil {
			return v
		}
		if out, ok := rule.Transform(v); ok {
			return out
		}
	}
	if rule.Derive != nil {
		if out, ok := rule.Derive(raw); ok {
			return out
		}
	}
	return rule.Empty
}

func present(v any, ok bool) bool {
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// Schema is the full normalization table of one resource.
type Schema struct {
	Resource string
	Rules    []FieldRule
}

// Normalize normalizes one unwrapped element. Non-object elements produce an
// item whose fields all hold their empty values.
func (s Schema) Normalize(raw any) *Item {
	obj, _ := raw.(map[string]any)
	return Normalize(obj, s.rules())
}

// NormalizeAll normalizes a list of unwrapped elements, preserving order.
func (s Schema) NormalizeAll(raw []any) []*Item {
	rules := s.rules()
	out := make([]*Item, 0, len(raw))
	for _, r := range raw {
		obj, _ := r.(map[string]any)
		out = append(out, Normalize(obj, rules))
	}
	return out
}

func (s Schema) rules() []FieldRule {
	for _, r := range s.Rules {
		if r.Name == "id" {
			return s.Rules
		}
	}
	return append([]FieldRule{IDRule(s.Resource)}, s.Rules...)
}

// Names returns the canonical field names in declaration order, "id" first.
func (s Schema) Names() []string {
	rules := s.rules()
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}
	return names
}

func singular(resource string) string {
	resource = strings.TrimSpace(resource)
	return strings.TrimSuffix(resource, "s")
}
