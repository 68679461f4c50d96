package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy allows safe user-generated formatting (<p>, <b>, <a>, lists).
	UGCPolicy = bluemonday.UGCPolicy()
)

// Text strips all HTML from a user-supplied field and trims surrounding
// whitespace. Entities produced by the policy are decoded again because the
// result is served as JSON, not embedded in markup.
// Use for: names, titles, company, job titles, venue fields.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// HTML sanitizes HTML content, allowing safe formatting tags.
// Use for: event descriptions, session descriptions, bios.
func HTML(input string) string {
	return strings.TrimSpace(UGCPolicy.Sanitize(input))
}

// TextSlice sanitizes each string in a slice and drops entries that end up empty.
func TextSlice(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	sanitized := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if v := Text(input); v != "" {
			sanitized = append(sanitized, v)
		}
	}
	return sanitized
}

// Tags sanitizes, lower-cases and de-duplicates tags, keeping first-seen order.
func Tags(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(inputs))
	out := make([]string, 0, len(inputs))
	for _, v := range TextSlice(inputs) {
		v = strings.ToLower(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
