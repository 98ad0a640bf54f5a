package gcd

import (
	"fmt"
	"gcdfetch/lib/htmlutil"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractCsrf reads the synchronizer token rendered into the form, it
// differs per render so it must be read from every page before a POST.
func ExtractCsrf(doc *goquery.Document, field string) (string, error) {
	input := doc.Find(fmt.Sprintf(`input[name="%s"]`, field)).First()
	if input.Length() == 0 {
		return "", fmt.Errorf("%w: no input named %q", ErrParse, field)
	}
	token := input.AttrOr("value", "")
	if token == "" {
		return "", fmt.Errorf("%w: input %q has no value", ErrParse, field)
	}
	return token, nil
}

// ExtractIdentity finds the first text node matching `label` and returns
// the trimmed text of the node right after it, this is how the download
// page lays out the dump timestamp:
//
//	MySQL: <span>May 1, 2024, 2:15 a.m.</span>
//
// a label without a following node, or with an empty one, is an error so
// that a layout change never produces an empty identity. text spanning
// several lines is rejected too, the history stores one identity per line.
func ExtractIdentity(doc *goquery.Document, label *regexp.Regexp) (string, error) {
	for _, root := range doc.Nodes {
		node := htmlutil.FindTextNode(root, label.MatchString)
		if node == nil {
			continue
		}
		if node.NextSibling == nil {
			return "", fmt.Errorf("%w: label %q has no sibling", ErrParse, label.String())
		}
		identity := strings.TrimSpace(htmlutil.GetText(node.NextSibling))
		if identity == "" {
			return "", fmt.Errorf("%w: label %q is followed by empty text", ErrParse, label.String())
		}
		if strings.ContainsAny(identity, "\r\n") {
			return "", fmt.Errorf("%w: identity %q spans multiple lines", ErrParse, identity)
		}
		return identity, nil
	}
	return "", fmt.Errorf("%w: no text matching %q", ErrParse, label.String())
}

// ExtractNotice returns the whitespace-collapsed text of the notice container.
func ExtractNotice(doc *goquery.Document, selector string) (string, error) {
	container := doc.Find(selector).First()
	if container.Length() == 0 {
		return "", fmt.Errorf("%w: no notice container %q", ErrParse, selector)
	}
	return htmlutil.CollapseWhitespace(container.Text()), nil
}
