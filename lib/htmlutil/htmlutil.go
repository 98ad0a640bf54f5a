package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// FindTextNode returns the first text node under root (in document order)
// for which match returns true, or nil.
func FindTextNode(root *html.Node, match func(text string) bool) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.TextNode {
		if match(root.Data) {
			return root
		}
		return nil
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		found := FindTextNode(child, match)
		if found != nil {
			return found
		}
	}
	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

// CollapseWhitespace turns every run of whitespace (newlines included)
// into a single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
