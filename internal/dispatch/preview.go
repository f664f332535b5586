package dispatch

import "unicode/utf8"

// Attribute preview extraction: a stored node is summarized in the
// follow-up thought by the first displayable attribute found. The
// candidates are an ordered list of named extractors, tried in
// sequence, stopping at the first match.

const previewLimit = 100

type previewExtractor struct {
	name    string
	extract func(attrs map[string]any) (string, bool)
}

func stringAttr(key string) func(map[string]any) (string, bool) {
	return func(attrs map[string]any) (string, bool) {
		v, ok := attrs[key].(string)
		return v, ok && v != ""
	}
}

var previewExtractors = []previewExtractor{
	{name: "content", extract: stringAttr("content")},
	{name: "name", extract: stringAttr("name")},
	{name: "value", extract: stringAttr("value")},
}

// attributePreview returns a short display string for a node's
// attributes, truncated to previewLimit characters. Empty when no
// candidate attribute is present.
func attributePreview(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	for _, ex := range previewExtractors {
		if v, ok := ex.extract(attrs); ok {
			return truncate(v, previewLimit)
		}
	}
	return ""
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
