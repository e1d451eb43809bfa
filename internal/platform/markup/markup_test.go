package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTMLRendersMarkdown(t *testing.T) {
	r := NewRenderer()
	out, err := r.HTML("# Landing kit\n\nA **fast** starter with [docs](https://example.com/docs).")
	require.NoError(t, err)
	require.Contains(t, out, "<h1>Landing kit</h1>")
	require.Contains(t, out, "<strong>fast</strong>")
	require.Contains(t, out, `href="https://example.com/docs"`)
	require.Contains(t, out, `rel="nofollow noopener"`)
}

func TestHTMLStripsScripts(t *testing.T) {
	r := NewRenderer()
	out, err := r.HTML("hello <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)
	require.NotContains(t, strings.ToLower(out), "<script")
	require.NotContains(t, out, "javascript:")
}

func TestHTMLEmpty(t *testing.T) {
	out, err := NewRenderer().HTML("   ")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestPlainText(t *testing.T) {
	r := NewRenderer()
	require.Equal(t, "Hi there", r.PlainText("<b>Hi</b> there"))
}

func TestPlainTextKeepsEntitiesReadable(t *testing.T) {
	r := NewRenderer()
	require.Equal(t, "Tom & Jerry", r.PlainText("Tom & <script>alert(1)</script>Jerry"))
}
