package extract

// Field names a logical column of the rumours table.
type Field string

const (
	FieldPlayer         Field = "player"
	FieldPosition       Field = "position"
	FieldCurrentClub    Field = "current_club"
	FieldInterestedClub Field = "interested_club"
	FieldSource         Field = "source"
	FieldProbability    Field = "probability"
)

// Fields lists every logical field the column mapper resolves, in mapping
// order.
var Fields = []Field{
	FieldPlayer,
	FieldPosition,
	FieldCurrentClub,
	FieldInterestedClub,
	FieldSource,
	FieldProbability,
}

// DefaultPositionLabel is used for a defender whose position was classified
// without a literal position snippet.
const DefaultPositionLabel = "Defender"

// TransferRule maps title-attribute keywords to a transfer type label.
type TransferRule struct {
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
}

// Rules is the configuration the extractor works from: selectors, header
// aliases, positional defaults and keyword sets. A Rules value is never
// modified by the extractor; DefaultRules returns a fresh copy each call so
// tests can substitute parts of it.
type Rules struct {
	TableSelector      string             `json:"table_selector"`
	PlayerLinkSelector string             `json:"player_link_selector"`
	ClubLinkSelector   string             `json:"club_link_selector"`
	PositionSelectors  []string           `json:"position_selectors"`
	Aliases            map[Field][]string `json:"aliases"`
	Defaults           ColumnMap          `json:"defaults"`
	DefenderKeywords   []string           `json:"defender_keywords"`
	PositionTriggers   []string           `json:"position_triggers"`
	DefaultPosition    string             `json:"default_position"`
	TransferTypes      []TransferRule     `json:"transfer_types"`
}

// DefaultDefenderKeywords is the bilingual defender lexicon. Matching is by
// lower-case substring containment.
var DefaultDefenderKeywords = []string{
	// English
	"defender",
	"centre-back", "center-back", "centre back", "center back",
	"left-back", "left back", "right-back", "right back",
	"wing-back", "wingback", "full-back", "fullback",
	// German
	"innenverteidiger", "rechter verteidiger", "linker verteidiger",
	"außenverteidiger", "aussenverteidiger", "verteidiger",
}

// DefaultPositionTriggers decide whether a snippet is worth considering as a
// position at all. The defender keywords make the final call.
var DefaultPositionTriggers = []string{"back", "verteidiger", "defender"}

// DefaultColumns returns the positional fallback used for any field the
// table headers do not resolve.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		FieldPlayer:         0,
		FieldPosition:       0,
		FieldCurrentClub:    2,
		FieldInterestedClub: 3,
		FieldSource:         4,
		FieldProbability:    5,
	}
}

// DefaultAliases returns the English/German header aliases per field.
func DefaultAliases() map[Field][]string {
	return map[Field][]string{
		FieldPlayer:         {"player", "spieler"},
		FieldPosition:       {"position", "pos."},
		FieldCurrentClub:    {"current club", "aktueller verein", "verein"},
		FieldInterestedClub: {"interested club", "interessent", "interessenten"},
		FieldSource:         {"source", "quelle"},
		FieldProbability:    {"probability", "wahrscheinlichkeit"},
	}
}

// DefaultRules returns the rules for the Transfermarkt rumours page
// (detailed view).
func DefaultRules() Rules {
	return Rules{
		TableSelector:      "table.items",
		PlayerLinkSelector: `a[href*="/profil/spieler/"]`,
		ClubLinkSelector:   `a[href*="/startseite/verein/"], a[href*="/verein/"]`,
		PositionSelectors:  []string{"table.inline-table td", "small", "span", ".position"},
		Aliases:            DefaultAliases(),
		Defaults:           DefaultColumns(),
		DefenderKeywords:   append([]string(nil), DefaultDefenderKeywords...),
		PositionTriggers:   append([]string(nil), DefaultPositionTriggers...),
		DefaultPosition:    DefaultPositionLabel,
		// More specific phrases come first: "end of loan" also contains
		// "loan".
		TransferTypes: []TransferRule{
			{Label: "Return/End of loan", Keywords: []string{"return from loan", "end of loan", "leih-ende", "leihende", "rückkehr"}},
			{Label: "Loan", Keywords: []string{"loan", "leihe"}},
			{Label: "Free", Keywords: []string{"free transfer", "without fee", "ablösefrei"}},
			{Label: "Transfer", Keywords: []string{"transfer", "wechsel"}},
		},
	}
}
