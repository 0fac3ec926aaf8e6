package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  Coping with Anxiety: 5 Tips!  ", "coping-with-anxiety-5-tips"},
		{"Café Crème", "cafe-creme"},
		{"Ñandú & über", "nandu-uber"},
		{"---", ""},
		{"already-a-slug", "already-a-slug"},
		{"日本語 title", "title"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	html, err := Render("# Title\n\nSome **bold** text.\n\n- one\n- two\n")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<li>one</li>")
	assert.Contains(t, html, "<h1")
}

func TestRenderStripsScripts(t *testing.T) {
	html, err := Render("hi <script>alert(1)</script>\n\n[x](javascript:alert(1))")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script")
	assert.NotContains(t, html, "javascript:")
}

func TestExcerpt(t *testing.T) {
	src := "# Heading\n\nFirst *paragraph* here\ncontinues.\n\nSecond paragraph."
	assert.Equal(t, "First paragraph here continues.", Excerpt(src, 200))
	assert.Equal(t, "First…", Excerpt(src, 6))
}
