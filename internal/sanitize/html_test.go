package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_RemovesAllHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "script tag", input: `Hello <script>alert('xss')</script> World`, expected: `Hello  World`},
		{name: "inline event handler", input: `<div onclick="alert('xss')">Click me</div>`, expected: `Click me`},
		{name: "mixed tags", input: `<b>Bold</b> <i>Italic</i>`, expected: `Bold Italic`},
		{name: "ampersand survives", input: `Tom & Jerry`, expected: `Tom & Jerry`},
		{name: "whitespace trimmed", input: "  Tech Corp  ", expected: `Tech Corp`},
		{name: "empty string", input: ``, expected: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestHTML_AllowsSafeFormatting(t *testing.T) {
	out := HTML(`<p>Join us for <b>talks</b></p><script>alert(1)</script>`)

	assert.Contains(t, out, "<b>talks</b>")
	assert.NotContains(t, out, "<script>")
}

func TestHTML_StripsEventHandlers(t *testing.T) {
	out := HTML(`<a href="https://example.com" onclick="steal()">link</a>`)

	assert.NotContains(t, strings.ToLower(out), "onclick")
	assert.Contains(t, out, "link")
}

func TestTextSlice_DropsEmptyEntries(t *testing.T) {
	assert.Nil(t, TextSlice(nil))
	assert.Equal(t, []string{"AI", "Go"}, TextSlice([]string{"<b>AI</b>", "<script>x</script>", " Go "}))
}

func TestTags_LowercasesAndDeduplicates(t *testing.T) {
	assert.Equal(t, []string{"golang", "cloud"}, Tags([]string{"GoLang", "cloud", "golang", ""}))
}
