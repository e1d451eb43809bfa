// Package markup renders template descriptions and cleans user-supplied text.
package markup

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown into sanitised HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewRenderer builds a Renderer with GFM tables, strikethrough and autolinks.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption")
	policy.AllowAttrs("class").OnElements("code", "pre", "span")
	policy.AllowAttrs("loading").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: policy,
		strict: bluemonday.StrictPolicy(),
	}
}

// HTML renders markdown source. Raw HTML in the source is escaped by goldmark and the
// output passes through the UGC policy.
func (r *Renderer) HTML(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("markup: render markdown: %w", err)
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String())), nil
}

// PlainText strips every tag from s. Entities are decoded again so the result is raw text
// for JSON responses.
func (r *Renderer) PlainText(s string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(r.strict.Sanitize(s)))
}
