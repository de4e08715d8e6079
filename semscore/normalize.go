package semscore

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Normalize reduces a text to its comparable form: markup stripped,
// whitespace runs collapsed to single spaces, surrounding space trimmed.
// Inputs without tags pass through the parser unchanged apart from the
// whitespace treatment, so plain text and HTML fragments normalise to
// the same string when they say the same thing.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsRune(s, '<') {
		if doc, err := html.Parse(strings.NewReader(s)); err == nil {
			var b strings.Builder
			collectText(doc, &b)
			s = b.String()
		}
	}
	return collapseSpace(s)
}

// collectText gathers text nodes depth-first, skipping subtrees that
// never render as response content.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
