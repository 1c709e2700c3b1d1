// Package enrich adds profile attributes (age, nationality, contract expiry,
// market value) to rumour records by reading each player's profile page.
package enrich

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/defrumours/extract"
	"github.com/pevans/defrumours/rumours"
)

// Profile info-table labels in English and German, lower case and without
// the trailing colon.
var (
	ageLabels         = []string{"age", "alter", "date of birth/age", "geb./alter", "geburtsdatum/alter"}
	nationalityLabels = []string{"citizenship", "nationality", "staatsbürgerschaft", "nationalität"}
	contractLabels    = []string{"contract expires", "vertrag bis"}
	marketValueLabels = []string{"market value", "marktwert"}
)

const (
	labelSelector       = "span.info-table__content--regular"
	valueSelector       = ".info-table__content--bold"
	marketValueSelector = ".data-header__market-value-wrapper"
)

var (
	agePattern    = regexp.MustCompile(`\((\d{1,3})\)`)
	digitsPattern = regexp.MustCompile(`^\d{1,3}$`)
)

// ParseProfileHTML parses markup and reads its profile attributes.
func ParseProfileHTML(markup []byte) (rumours.Profile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return rumours.Profile{}, fmt.Errorf("failed to parse profile HTML: %w", err)
	}
	return ParseProfile(doc), nil
}

// ParseProfile reads profile attributes from a player profile page. Missing
// attributes are left empty.
func ParseProfile(doc *goquery.Document) rumours.Profile {
	var p rumours.Profile

	doc.Find(labelSelector).Each(func(i int, label *goquery.Selection) {
		name := strings.TrimSuffix(strings.ToLower(extract.Text(label)), ":")
		name = strings.TrimSpace(name)
		value := label.NextFiltered(valueSelector)
		if value.Length() == 0 {
			return
		}

		switch {
		case slices.Contains(ageLabels, name) && p.Age == "":
			p.Age = parseAge(extract.Text(value))
		case slices.Contains(nationalityLabels, name) && p.Nationality == "":
			p.Nationality = nationality(value)
		case slices.Contains(contractLabels, name) && p.ContractExpiry == "":
			p.ContractExpiry = extract.Text(value)
		case slices.Contains(marketValueLabels, name) && p.MarketValue == "":
			p.MarketValue = extract.Text(value)
		}
	})

	// The header figure is the current value; the info-table entry, when
	// present at all, may be stale.
	if header := marketValue(doc.Find(marketValueSelector).First()); header != "" {
		p.MarketValue = header
	}

	return p
}

// parseAge accepts "Jun 5, 2000 (24)" or a bare "24".
func parseAge(s string) string {
	if m := agePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if digitsPattern.MatchString(s) {
		return s
	}
	return ""
}

// nationality prefers flag titles, which list every citizenship separately,
// over the cell text.
func nationality(value *goquery.Selection) string {
	var flags []string
	value.Find("img[title]").Each(func(i int, img *goquery.Selection) {
		if title := extract.Normalize(img.AttrOr("title", "")); title != "" && !slices.Contains(flags, title) {
			flags = append(flags, title)
		}
	})
	if len(flags) > 0 {
		return strings.Join(flags, ", ")
	}
	return extract.Text(value)
}

// marketValue reads the wrapper's figure without the "last update" caption.
func marketValue(wrapper *goquery.Selection) string {
	if wrapper.Length() == 0 {
		return ""
	}
	figure := wrapper.Clone()
	figure.Find("p").Remove()
	// Plain Text keeps "€<span>12.00</span>m" together as "€12.00m".
	return extract.Normalize(figure.Text())
}
