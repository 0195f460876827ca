package fetcher

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// hiddenText lists elements whose character data is never rendered.
var hiddenText = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
	atom.Noscript: true,
}

// ExtractText returns the visible text of htmlText. With a selector that
// matches, only the first match is used; otherwise the whole document is.
// Every text node is trimmed, blanks are dropped, and pieces are joined with
// newlines.
func ExtractText(htmlText, selector string) (string, error) {
	text, _, err := extract(htmlText, selector)
	return text, err
}

func extract(htmlText, selector string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return "", false, fmt.Errorf("parse html: %w", err)
	}
	root := doc.Selection
	matched := false
	if sel := strings.TrimSpace(selector); sel != "" {
		// goquery yields an empty selection for selectors it cannot compile,
		// which lands in the same whole-document fallback.
		if first := doc.Find(sel).First(); first.Length() > 0 {
			root = first
			matched = true
		}
	}
	return visibleText(root), matched, nil
}

func visibleText(sel *goquery.Selection) string {
	var pieces []string
	for _, n := range sel.Nodes {
		collectText(n, &pieces)
	}
	return strings.Join(pieces, "\n")
}

func collectText(n *html.Node, pieces *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*pieces = append(*pieces, t)
		}
		return
	case html.ElementNode:
		if hiddenText[n.DataAtom] {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, pieces)
	}
}
