package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parse(t testing.TB, src string) *html.Node {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestGetText(t *testing.T) {
	doc := parse(t, `<div>one <b>two</b> <i>th<u>ree</u></i></div>`)
	require.Equal(t, "one two three", GetText(doc))
	require.Equal(t, "", GetText(nil))
}

func TestFindTextNode(t *testing.T) {
	doc := parse(t, `<ul><li>Postgres: soon</li><li>MySQL: <span>May 1</span></li><li>MySQL: again</li></ul>`)

	node := FindTextNode(doc, func(text string) bool {
		return strings.Contains(text, "MySQL:")
	})
	require.NotNil(t, node)
	require.Equal(t, "MySQL: ", node.Data)
	require.NotNil(t, node.NextSibling)
	require.Equal(t, "May 1", GetText(node.NextSibling))

	missing := FindTextNode(doc, func(text string) bool {
		return strings.Contains(text, "SQLite:")
	})
	require.Nil(t, missing)
}

func TestCollapseWhitespace(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "\nAlready\naccepted\n", expected: "Already accepted"},
		{in: "  a \t\t b\r\n c  ", expected: "a b c"},
		{in: "", expected: ""},
		{in: "single", expected: "single"},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, CollapseWhitespace(test.in))
	}
}
