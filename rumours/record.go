// Package rumours holds the output model: defender rumour records and the
// result set written for each run.
package rumours

import (
	"fmt"
	"strings"
	"time"
)

// Record is one defender transfer rumour.
type Record struct {
	Player         string `json:"player"`
	Position       string `json:"position"`
	CurrentClub    string `json:"current_club"`
	InterestedClub string `json:"interested_club"`
	Probability    *int   `json:"probability"`
	SourceLink     string `json:"source_link"`

	// Extended fields; empty when unknown.
	Age            string `json:"age,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	ContractExpiry string `json:"contract_expiry,omitempty"`
	MarketValue    string `json:"market_value,omitempty"`
	TransferType   string `json:"transfer_type,omitempty"`
	RumourDate     string `json:"rumour_date,omitempty"`
	ProfileLink    string `json:"profile_link,omitempty"`
}

// Profile holds the attributes read from a player's profile page.
type Profile struct {
	Age            string `json:"age,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	ContractExpiry string `json:"contract_expiry,omitempty"`
	MarketValue    string `json:"market_value,omitempty"`
}

// WithProfile returns a copy of r carrying p's attributes.
func (r Record) WithProfile(p Profile) Record {
	r.Age = p.Age
	r.Nationality = p.Nationality
	r.ContractExpiry = p.ContractExpiry
	r.MarketValue = p.MarketValue
	return r
}

// ProbabilityLabel renders the probability for display: "40%" or "" when
// unknown.
func (r Record) ProbabilityLabel() string {
	if r.Probability == nil {
		return ""
	}
	return fmt.Sprintf("%d%%", *r.Probability)
}

// TimestampLayout is ISO-8601 UTC with second precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Timestamp is a UTC time serialised with second precision and a trailing
// "Z".
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to the second and converts it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

// String formats the timestamp with TimestampLayout.
func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
