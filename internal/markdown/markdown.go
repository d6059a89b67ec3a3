// Package markdown renders knowledge-doc content to HTML and derives plain
// text excerpts from it.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	xhtml "golang.org/x/net/html"
)

// ExcerptLength is the number of characters kept by Excerpt.
const ExcerptLength = 150

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("monokai"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithUnsafe(),
	),
)

// Render converts markdown to HTML. Empty input renders to "".
func Render(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// PlainText renders content and returns its visible text with whitespace
// collapsed. Code blocks are kept; scripts and styles are dropped.
func PlainText(content string) string {
	rendered, err := Render(content)
	if err != nil || rendered == "" {
		return collapse(content)
	}
	doc, err := xhtml.Parse(strings.NewReader(rendered))
	if err != nil {
		return collapse(content)
	}

	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == xhtml.ElementNode && blockElements[n.Data] {
			b.WriteByte(' ')
		}
	}
	walk(doc)
	return collapse(b.String())
}

// Excerpt is the first ExcerptLength characters of the plain text, followed
// by "..." when anything was cut.
func Excerpt(content string) string {
	text := PlainText(content)
	runes := []rune(text)
	if len(runes) <= ExcerptLength {
		return text
	}
	return string(runes[:ExcerptLength]) + "..."
}

var blockElements = map[string]bool{
	"p": true, "br": true, "li": true, "pre": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"td": true, "th": true, "tr": true, "hr": true, "div": true,
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
