package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var probabilityPattern = regexp.MustCompile(`(\d{1,3})\s*%`)

// RumourRow holds what was extracted from one table row before the defender
// filter is applied. It is serialised into the diagnostics capture.
type RumourRow struct {
	PlayerName         string   `json:"player_name"`
	ProfileLink        string   `json:"profile_link"`
	PositionCandidates []string `json:"position_candidates"`
	Position           string   `json:"position"`
	Defender           bool     `json:"defender"`
	CurrentClub        string   `json:"current_club"`
	InterestedClub     string   `json:"interested_club"`
	ProbabilityRaw     string   `json:"probability_raw"`
	Probability        *int     `json:"probability"`
	SourceLink         string   `json:"source_link"`
	TransferTypeHint   string   `json:"transfer_type_hint"`
	RumourDateRaw      string   `json:"rumour_date_raw"`
	PlayerCellText     string   `json:"player_cell_text"`
	RowText            string   `json:"row_text"`
}

// Page is the result of one extraction pass over a listing page.
type Page struct {
	TableFound bool        `json:"table_found"`
	Headers    []string    `json:"headers"`
	Columns    ColumnMap   `json:"column_index_map"`
	TotalRows  int         `json:"total_rows"`
	Skipped    int         `json:"skipped_rows"`
	Rows       []RumourRow `json:"parsed_rows"`
}

// Defenders returns the rows classified as defenders, in table order.
func (p *Page) Defenders() []RumourRow {
	var out []RumourRow
	for _, row := range p.Rows {
		if row.Defender {
			out = append(out, row)
		}
	}
	return out
}

// Extractor turns a rumours listing page into RumourRows.
type Extractor struct {
	rules      Rules
	mapper     ColumnMapper
	classifier *Classifier
	base       *url.URL
}

// NewExtractor creates an extractor for a page fetched from pageURL, which is
// used to make relative links absolute. An unparsable pageURL leaves relative
// links as they are.
func NewExtractor(rules Rules, pageURL string) *Extractor {
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		base = nil
	}

	return &Extractor{
		rules:      rules,
		mapper:     ColumnMapper{Aliases: rules.Aliases, Defaults: rules.Defaults},
		classifier: NewClassifier(rules.DefenderKeywords, rules.PositionTriggers, rules.PositionSelectors),
		base:       base,
	}
}

// Classifier returns the position classifier the extractor uses.
func (e *Extractor) Classifier() *Classifier {
	return e.classifier
}

// ExtractHTML parses markup and extracts it.
func (e *Extractor) ExtractHTML(markup []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return e.Extract(doc), nil
}

// Extract locates the rumours table and extracts every row. A missing table
// is not an error: the page comes back with TableFound false, no rows and
// the default column map.
func (e *Extractor) Extract(doc *goquery.Document) *Page {
	table := doc.Find(e.rules.TableSelector).First()
	if table.Length() == 0 {
		return &Page{Columns: e.mapper.Map(nil)}
	}

	page := &Page{TableFound: true}
	table.ChildrenFiltered("thead").Find("tr th").Each(func(_ int, th *goquery.Selection) {
		page.Headers = append(page.Headers, Text(th))
	})
	page.Columns = e.mapper.Map(page.Headers)

	// Only the table's own rows: inline sub-tables nested in the player
	// cell have tbody > tr of their own.
	table.ChildrenFiltered("tbody").ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		page.TotalRows++
		row, ok := e.Row(tr, page.Columns)
		if !ok {
			page.Skipped++
			return
		}
		page.Rows = append(page.Rows, row)
	})

	return page
}

// Row extracts a single table row. It reports false when the row has no
// usable player cell.
func (e *Extractor) Row(tr *goquery.Selection, cols ColumnMap) (RumourRow, bool) {
	r := &rowScope{
		row:   tr,
		cols:  cols,
		base:  e.base,
		rules: &e.rules,
	}
	// Top-level cells only; nested inline-table cells are not columns.
	tr.ChildrenFiltered("td").Each(func(_ int, td *goquery.Selection) {
		r.cells = append(r.cells, td)
	})

	playerCell := r.cell(FieldPlayer)
	if playerCell == nil {
		return RumourRow{}, false
	}

	cellTexts := make([]string, len(r.cells))
	for i, td := range r.cells {
		cellTexts[i] = Text(td)
	}
	r.text = Normalize(strings.Join(cellTexts, " "))

	row := RumourRow{
		PlayerCellText: Text(playerCell),
		RowText:        r.text,
	}

	row.PlayerName = firstOf(r, playerLinkText, cellText(FieldPlayer))
	if row.PlayerName == "" {
		return RumourRow{}, false
	}
	row.ProfileLink = firstOf(r, playerLinkHref)

	// A non-empty position column of its own decides alone; the player cell
	// and row text are only searched when it is missing or blank.
	if pc := r.cell(FieldPosition); pc != nil && cols[FieldPosition] != cols[FieldPlayer] && Text(pc) != "" {
		row.PositionCandidates = e.classifier.Candidates([]*goquery.Selection{pc}, "")
		row.Position = Text(pc)
		if len(row.PositionCandidates) > 0 {
			row.Position = row.PositionCandidates[0]
		}
		row.Defender = e.classifier.IsDefender(row.Position)
	} else {
		row.PositionCandidates = e.classifier.Candidates([]*goquery.Selection{playerCell}, r.text)
		if len(row.PositionCandidates) > 0 {
			row.Position = row.PositionCandidates[0]
		}
		row.Defender = e.classifier.IsDefender(firstNonEmpty(row.Position, row.PlayerCellText, row.RowText))
	}

	row.CurrentClub = firstOf(r,
		clubLink(FieldCurrentClub, FirstClubLink),
		cellText(FieldCurrentClub),
	)
	row.InterestedClub = firstOf(r,
		clubLink(FieldInterestedClub, LastClubLink),
		cellText(FieldInterestedClub),
	)

	row.ProbabilityRaw = Text(r.cell(FieldProbability))
	row.Probability = ParseProbability(row.ProbabilityRaw)
	if row.Probability == nil {
		row.Probability = ParseProbability(r.text)
	}

	row.SourceLink = firstOf(r, externalSourceLink, firstSourceLink)
	row.TransferTypeHint = firstOf(r, transferType)
	row.RumourDateRaw = firstOf(r, dateAttribute, lastCellText)

	return row, true
}

// ParseProbability returns the first "NN%" percentage in s. Values outside
// [0, 100] and text without a percentage give nil, meaning unknown.
func ParseProbability(s string) *int {
	m := probabilityPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v < 0 || v > 100 {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
