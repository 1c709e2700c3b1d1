package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// strategy is one way of reading a field out of a row. It reports false when
// it found nothing, letting the next strategy in the chain run.
type strategy func(r *rowScope) (string, bool)

// firstOf runs the chain in order and returns the first value found.
func firstOf(r *rowScope, chain ...strategy) string {
	for _, s := range chain {
		if v, ok := s(r); ok {
			return v
		}
	}
	return ""
}

// rowScope is everything strategies may look at for one table row.
type rowScope struct {
	row   *goquery.Selection
	cells []*goquery.Selection
	cols  ColumnMap
	text  string
	base  *url.URL
	rules *Rules
}

// cell returns the top-level cell mapped to field, or nil when the row is
// too short.
func (r *rowScope) cell(field Field) *goquery.Selection {
	idx, ok := r.cols[field]
	if !ok || idx < 0 || idx >= len(r.cells) {
		return nil
	}
	return r.cells[idx]
}

// resolve makes href absolute against the page URL. Unparsable hrefs are
// returned as they are.
func (r *rowScope) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || r.base == nil {
		return href
	}
	u, err := r.base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

// playerLink finds the first player-profile link in the player cell that has
// text.
func (r *rowScope) playerLink() *goquery.Selection {
	cell := r.cell(FieldPlayer)
	if cell == nil {
		return nil
	}
	var found *goquery.Selection
	cell.Find(r.rules.PlayerLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if Text(a) != "" {
			found = a
			return false
		}
		return true
	})
	return found
}

func playerLinkText(r *rowScope) (string, bool) {
	if a := r.playerLink(); a != nil {
		return Text(a), true
	}
	return "", false
}

func playerLinkHref(r *rowScope) (string, bool) {
	if a := r.playerLink(); a != nil {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			return r.resolve(href), true
		}
	}
	return "", false
}

// cellText reads the whole normalized text of the cell mapped to field.
func cellText(field Field) strategy {
	return func(r *rowScope) (string, bool) {
		t := Text(r.cell(field))
		return t, t != ""
	}
}

// clubNames lists the club-link names in a cell in document order. A link
// without text (crest images) falls back to its title attribute.
func (r *rowScope) clubNames(field Field) []string {
	cell := r.cell(field)
	if cell == nil {
		return nil
	}
	var names []string
	cell.Find(r.rules.ClubLinkSelector).Each(func(_ int, a *goquery.Selection) {
		name := Text(a)
		if name == "" {
			name = Normalize(a.AttrOr("title", ""))
		}
		if name != "" {
			names = append(names, name)
		}
	})
	return names
}

// ClubRule is a structural assumption about the source layout: the first
// club link of a column names the current club and the last one names the
// interested club, since decorative links come before the destination.
type ClubRule int

const (
	FirstClubLink ClubRule = iota
	LastClubLink
)

func clubLink(field Field, rule ClubRule) strategy {
	return func(r *rowScope) (string, bool) {
		names := r.clubNames(field)
		if len(names) == 0 {
			return "", false
		}
		if rule == LastClubLink {
			return names[len(names)-1], true
		}
		return names[0], true
	}
}

// externalSourceLink prefers a link that leaves the page's own site.
func externalSourceLink(r *rowScope) (string, bool) {
	cell := r.cell(FieldSource)
	if cell == nil {
		return "", false
	}
	var found string
	cell.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		u, err := url.Parse(href)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return true
		}
		if r.base != nil && sameSite(u.Hostname(), r.base.Hostname()) {
			return true
		}
		found = href
		return false
	})
	return found, found != ""
}

// firstSourceLink takes the first link in the source cell, made absolute.
func firstSourceLink(r *rowScope) (string, bool) {
	cell := r.cell(FieldSource)
	if cell == nil {
		return "", false
	}
	var found string
	cell.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if href := strings.TrimSpace(a.AttrOr("href", "")); href != "" {
			found = r.resolve(href)
			return false
		}
		return true
	})
	return found, found != ""
}

// transferType classifies the row by its title attributes.
func transferType(r *rowScope) (string, bool) {
	var titles []string
	if t, ok := r.row.Attr("title"); ok {
		titles = append(titles, t)
	}
	r.row.Find("[title]").Each(func(_ int, s *goquery.Selection) {
		titles = append(titles, s.AttrOr("title", ""))
	})
	if len(titles) == 0 {
		return "", false
	}

	all := strings.ToLower(Normalize(strings.Join(titles, " | ")))
	for _, rule := range r.rules.TransferTypes {
		if containsAny(all, lowerAll(rule.Keywords)) {
			return rule.Label, true
		}
	}
	return "", false
}

// dateAttribute reads a machine-readable date from the last cell.
func dateAttribute(r *rowScope) (string, bool) {
	if len(r.cells) == 0 {
		return "", false
	}
	last := r.cells[len(r.cells)-1]
	for _, attr := range []string{"datetime", "data-date"} {
		if v := strings.TrimSpace(last.AttrOr(attr, "")); v != "" {
			return v, true
		}
		if v := strings.TrimSpace(last.Find("[" + attr + "]").First().AttrOr(attr, "")); v != "" {
			return v, true
		}
	}
	return "", false
}

func lastCellText(r *rowScope) (string, bool) {
	if len(r.cells) == 0 {
		return "", false
	}
	t := Text(r.cells[len(r.cells)-1])
	return t, t != ""
}

// sameSite compares hosts by site name, so transfermarkt.com and
// www.transfermarkt.de count as the same origin.
func sameSite(a, b string) bool {
	return siteName(a) != "" && siteName(a) == siteName(b)
}

func siteName(host string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSuffix(host, ".")), ".")
	switch {
	case len(parts) >= 3 && isSecondLevel(parts[len(parts)-2]):
		return parts[len(parts)-3]
	case len(parts) >= 2:
		return parts[len(parts)-2]
	}
	return host
}

func isSecondLevel(label string) bool {
	switch label {
	case "co", "com", "org", "net", "ac", "gov":
		return true
	}
	return false
}
