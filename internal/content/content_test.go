// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantKind      Kind
		wantText      string
		wantDelimited bool
	}{
		{
			name:          "delimited content",
			raw:           "<<<START>>>hello<<<END>>>",
			wantKind:      Content,
			wantText:      "hello",
			wantDelimited: true,
		},
		{
			name:          "delimited content is trimmed and surrounding chatter dropped",
			raw:           "Sure, here it is:\n<<<START>>>\n## Intro\n\nBody text.\n<<<END>>>\nLet me know!",
			wantKind:      Content,
			wantText:      "## Intro\n\nBody text.",
			wantDelimited: true,
		},
		{
			name:     "plain prose falls back to whole response",
			raw:      "just plain prose, no markers",
			wantKind: Content,
			wantText: "just plain prose, no markers",
		},
		{
			name:     "plain prose trimmed",
			raw:      "\n  some prose  \n",
			wantKind: Content,
			wantText: "some prose",
		},
		{
			name:     "lone start delimiter",
			raw:      "text with a lone <<<START>>> but no end",
			wantKind: Unparseable,
		},
		{
			name:     "lone end delimiter",
			raw:      "text that ends <<<END>>>",
			wantKind: Unparseable,
		},
		{
			name:     "end before start",
			raw:      "<<<END>>> backwards <<<START>>>",
			wantKind: Unparseable,
		},
		{
			name:     "stray fragment",
			raw:      "a >>> b",
			wantKind: Unparseable,
		},
		{
			name:     "sentinel alone",
			raw:      "<<<COMPLETE>>>",
			wantKind: Complete,
		},
		{
			name:     "sentinel wins over delimited content before it",
			raw:      "<<<START>>>final words<<<END>>>\n<<<COMPLETE>>>",
			wantKind: Complete,
		},
		{
			name:     "sentinel wins when inside delimiters",
			raw:      "<<<START>>>text <<<COMPLETE>>> more<<<END>>>",
			wantKind: Complete,
		},
		{
			name:     "sentinel wins over lone fragment",
			raw:      "<<<START>>> <<<COMPLETE>>>",
			wantKind: Complete,
		},
		{
			name:          "empty delimited body",
			raw:           "<<<START>>>   <<<END>>>",
			wantKind:      Content,
			wantText:      "",
			wantDelimited: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantDelimited, got.Delimited)
			assert.NotContains(t, got.Text, "<<<")
			assert.NotContains(t, got.Text, ">>>")
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "content", Content.String())
	assert.Equal(t, "complete", Complete.String())
	assert.Equal(t, "unparseable", Unparseable.String())
}

func TestStripMarkers(t *testing.T) {
	assert.Equal(t, "text with a lone  but no end", StripMarkers("text with a lone <<<START>>> but no end"))
	assert.Equal(t, "body", StripMarkers("  <<<END>>>body>>> "))
	assert.Equal(t, "", StripMarkers("<<<START>>>"))
}

func TestCountPlannedSections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "no list", raw: "I will write an article.", want: 0},
		{
			name: "dot numbered",
			raw:  "Plan:\n1. Introduction\n2. Background\n3. Method\n4. Conclusion\n",
			want: 4,
		},
		{
			name: "paren numbered and indented",
			raw:  "  1) Intro\n  2) Body\n\n10) Wrap-up",
			want: 3,
		},
		{
			name: "numbers inside prose ignored",
			raw:  "We have 3 parts. In 2024 things changed.\n1.5 million readers",
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountPlannedSections(tt.raw))
		})
	}
}
