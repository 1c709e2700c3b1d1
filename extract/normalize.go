package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Normalize collapses every whitespace run (newlines, tabs and non-breaking
// spaces included) to a single space and trims the result. Text is put in
// NFC first so decomposed umlauts compare equal to the composed keywords.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Text returns the normalized text of sel. Text of sibling elements is
// separated by a space, so "<td>A</td><td>B</td>" reads "A B" rather than
// "AB". A nil or empty selection yields "".
func Text(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(&b, n)
	}
	return Normalize(b.String())
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}
