package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Classifier decides whether position text describes a defender, and digs
// position snippets out of player markup.
type Classifier struct {
	keywords  []string
	triggers  []string
	selectors []string
	scan      *regexp.Regexp
}

// NewClassifier builds a classifier from the strict defender keywords, the
// loose trigger words and the sub-selectors searched for position snippets.
func NewClassifier(keywords, triggers, selectors []string) *Classifier {
	c := &Classifier{
		keywords:  lowerAll(keywords),
		triggers:  lowerAll(triggers),
		selectors: selectors,
	}

	if len(c.triggers) > 0 {
		quoted := make([]string, len(c.triggers))
		for i, t := range c.triggers {
			quoted[i] = regexp.QuoteMeta(t)
		}
		// A run of letters, hyphens and spaces around one trigger word.
		c.scan = regexp.MustCompile(`(?i)[\p{L}\- ]*(?:` + strings.Join(quoted, "|") + `)[\p{L}\- ]*`)
	}

	return c
}

// IsDefender reports whether text contains any defender keyword, ignoring
// case. Containment rather than whole-word matching tolerates labels glued
// to nationality or club text.
func (c *Classifier) IsDefender(text string) bool {
	return containsAny(strings.ToLower(Normalize(text)), c.keywords)
}

// Loose reports whether text contains a trigger word. It only decides
// whether a snippet is considered.
func (c *Classifier) Loose(text string) bool {
	return containsAny(strings.ToLower(text), c.triggers)
}

// Scan returns the first run of letters, hyphens and spaces around a trigger
// word in text, or "".
func (c *Classifier) Scan(text string) string {
	if c.scan == nil {
		return ""
	}
	return Normalize(c.scan.FindString(Normalize(text)))
}

// Candidates returns position snippets in priority order: sub-selector
// matches inside each cell, then a scan of each cell's text, then a scan of
// the row text. Duplicates are dropped.
func (c *Classifier) Candidates(cells []*goquery.Selection, rowText string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, cell := range cells {
		for _, sel := range c.selectors {
			cell.Find(sel).Each(func(_ int, el *goquery.Selection) {
				if t := Text(el); t != "" && c.Loose(t) {
					add(t)
				}
			})
		}
	}
	for _, cell := range cells {
		add(c.Scan(Text(cell)))
	}
	add(c.Scan(rowText))

	return out
}

// Candidate returns the first position snippet, or "".
func (c *Classifier) Candidate(cells []*goquery.Selection, rowText string) string {
	if found := c.Candidates(cells, rowText); len(found) > 0 {
		return found[0]
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
