package common

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// g_ck is the host session token, also embedded in page scripts
	sessionTokenPattern = regexp.MustCompile(`g_ck\s*=\s*['"]([^'"]+)`)
)

// ParseHTML parses a rendered document
func ParseHTML(content string) (*html.Node, error) {
	return html.Parse(strings.NewReader(content))
}

// ExtractText gets all text content from an HTML node and its children
func ExtractText(node *html.Node) string {
	var text strings.Builder

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(node)
	return strings.TrimSpace(text.String())
}

// GetAttribute gets the value of an attribute from a node
func GetAttribute(node *html.Node, attrKey string) string {
	if node.Type != html.ElementNode {
		return ""
	}
	for _, attr := range node.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// HasAttribute checks if a node has a specific attribute
func HasAttribute(node *html.Node, attrKey string) bool {
	if node.Type != html.ElementNode {
		return false
	}
	for _, attr := range node.Attr {
		if attr.Key == attrKey {
			return true
		}
	}
	return false
}

// CollapseWhitespace turns every whitespace run, newlines included, into a
// single space and trims the result
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// FindSessionToken scrapes the g_ck session token from page markup
func FindSessionToken(content string) string {
	if m := sessionTokenPattern.FindStringSubmatch(content); len(m) > 1 {
		return m[1]
	}
	return ""
}
