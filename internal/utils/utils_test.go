package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownSanitises(t *testing.T) {
	out := string(RenderMarkdown("Seen near the **bank** <script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>bank</strong>")
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "alert(1)</script>")
}

func TestRenderMarkdownTurnsImagesIntoLinks(t *testing.T) {
	out := string(RenderMarkdown("![suspect](https://example.com/suspect.png)\n\nsee https://example.com/map"))
	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, `href="https://example.com/suspect.png"`)
	assert.Contains(t, out, ">suspect</a>")
	assert.Contains(t, out, `class="report-link"`)
}

func TestRenderMarkdownEmpty(t *testing.T) {
	assert.Empty(t, RenderMarkdown(""))
}

func TestParseID(t *testing.T) {
	for in, want := range map[string]uint{"1": 1, "42": 42} {
		got, ok := ParseID(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "0", "-1", "abc", "1.5", "99999999999"} {
		_, ok := ParseID(in)
		assert.False(t, ok, in)
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("battery staple", hash))
}
