package rumours

import (
	"cmp"
	"slices"
	"time"

	"github.com/pevans/defrumours/extract"
)

// Assemble converts the defender rows of an extraction pass into Records, in
// row order. Rows not classified as defenders never become Records. A
// defender row without a captured position snippet gets defaultPosition.
func Assemble(rows []extract.RumourRow, defaultPosition string) []Record {
	if defaultPosition == "" {
		defaultPosition = extract.DefaultPositionLabel
	}

	records := []Record{}
	for _, row := range rows {
		if !row.Defender {
			continue
		}

		position := row.Position
		if position == "" {
			position = defaultPosition
		}

		var probability *int
		if row.Probability != nil {
			p := *row.Probability
			probability = &p
		}

		records = append(records, Record{
			Player:         row.PlayerName,
			Position:       position,
			CurrentClub:    row.CurrentClub,
			InterestedClub: row.InterestedClub,
			Probability:    probability,
			SourceLink:     row.SourceLink,
			TransferType:   row.TransferTypeHint,
			RumourDate:     row.RumourDateRaw,
			ProfileLink:    row.ProfileLink,
		})
	}

	return records
}

// Compare orders Records: known probability before unknown, higher
// probability first, then player name ascending.
func Compare(a, b Record) int {
	switch {
	case a.Probability != nil && b.Probability == nil:
		return -1
	case a.Probability == nil && b.Probability != nil:
		return 1
	case a.Probability != nil && b.Probability != nil && *a.Probability != *b.Probability:
		return cmp.Compare(*b.Probability, *a.Probability)
	}
	return cmp.Compare(a.Player, b.Player)
}

// Sort returns a sorted copy of records. The sort is stable, so Records that
// compare equal keep their input order.
func Sort(records []Record) []Record {
	out := slices.Clone(records)
	if out == nil {
		out = []Record{}
	}
	slices.SortStableFunc(out, Compare)
	return out
}

// Meta describes where a result set came from.
type Meta struct {
	Source      string
	Competition string
	Season      string
	GeneratedAt time.Time
}

// ResultSet is the document written for one run.
type ResultSet struct {
	GeneratedUTC Timestamp `json:"generated_utc"`
	Source       string    `json:"source"`
	Competition  string    `json:"competition,omitempty"`
	Season       string    `json:"season,omitempty"`
	Count        int       `json:"count"`
	Items        []Record  `json:"items"`
}

// NewResultSet sorts a copy of records and stamps it with meta. A zero
// GeneratedAt means now.
func NewResultSet(meta Meta, records []Record) ResultSet {
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	items := Sort(records)
	return ResultSet{
		GeneratedUTC: NewTimestamp(generated),
		Source:       meta.Source,
		Competition:  meta.Competition,
		Season:       meta.Season,
		Count:        len(items),
		Items:        items,
	}
}
