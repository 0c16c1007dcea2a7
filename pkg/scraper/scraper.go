// Package scraper turns the HTML fragments found in provider payloads
// (descriptions, excerpts, feed bodies) into plain text.
package scraper

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"noscript": true, "svg": true, "iframe": true, "figure": true,
}

// PlainText strips markup from an HTML fragment, decodes entities and
// collapses whitespace into single spaces. Text without markup is returned
// with whitespace collapsed.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}

	var sb strings.Builder
	extractTextFromNode(doc, &sb)
	return collapse(sb.String())
}

func extractTextFromNode(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractTextFromNode(c, sb)
	}
}

// FirstImage returns the src of the first <img> in an HTML fragment.
func FirstImage(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return findImage(doc)
}

func findImage(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "img" {
		for _, attr := range n.Attr {
			if attr.Key == "src" && attr.Val != "" {
				return attr.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if src := findImage(c); src != "" {
			return src
		}
	}
	return ""
}

// Snippet cuts text to at most max runes, appending "..." when it was cut.
func Snippet(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max])) + "..."
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
