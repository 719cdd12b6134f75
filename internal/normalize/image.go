package normalize

import (
	"net/url"
	"path"
	"strings"
)

// imageSubFields are searched, in order, when the raw image is an object.
var imageSubFields = []string{"url", "path", "filename", "fileName", "name"}

// ImageResolver turns whatever the backend stores for a picture into a
// renderable path. The chain is fixed:
//
//	object or array -> fully-qualified URL -> rooted path -> bare filename -> placeholder
type ImageResolver struct {
	// StaticRoot prefixes bare filenames, e.g. "/uploads/vehicles".
	StaticRoot string
	// Placeholder is returned when nothing resolves.
	Placeholder string
	// DefaultExt is appended to bare filenames without an extension, e.g. ".jpg".
	DefaultExt string
}

// Path resolves v, falling back to the placeholder.
func (r ImageResolver) Path(v any) string {
	if p, ok := r.resolve(v); ok {
		return p
	}
	return r.Placeholder
}

// Transform adapts the resolver to a FieldRule. Unresolvable values fall
// through to the next source and finally to the rule's Empty value.
func (r ImageResolver) Transform() Transform {
	return func(v any) (any, bool) {
		p, ok := r.resolve(v)
		if !ok {
			return nil, false
		}
		return p, true
	}
}

// Rule builds an image field rule whose empty value is the placeholder.
func (r ImageResolver) Rule(name string, sources ...string) FieldRule {
	return FieldRule{Name: name, Sources: sources, Transform: r.Transform(), Empty: r.Placeholder}
}

func (r ImageResolver) resolve(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case []any:
		if len(t) == 0 {
			return "", false
		}
		return r.resolve(t[0])
	case map[string]any:
		for _, key := range imageSubFields {
			if s, ok := t[key].(string); ok && strings.TrimSpace(s) != "" {
				return r.resolveString(s)
			}
		}
		return "", false
	case string:
		return r.resolveString(t)
	default:
		return "", false
	}
}

func (r ImageResolver) resolveString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if isAbsoluteURL(s) || strings.HasPrefix(s, "/") {
		return s, true
	}

	name := strings.TrimPrefix(strings.ReplaceAll(s, "\\", "/"), "vehicles/")
	if name == "" {
		return "", false
	}
	if path.Ext(name) == "" {
		name += r.DefaultExt
	}

	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(r.StaticRoot, "/") + "/" + strings.Join(segments, "/"), true
}

func isAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	for _, prefix := range []string{"http://", "https://", "//", "data:", "blob:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
