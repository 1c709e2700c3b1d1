package render

import (
	"strings"
	"testing"

	"github.com/pevans/defrumours/rumours"
	"github.com/stretchr/testify/assert"
)

func prob(v int) *int {
	return &v
}

// TestTable_EscapesEveryField verifies hostile values never reach the output
// unescaped
func TestTable_EscapesEveryField(t *testing.T) {
	hostile := `<b>&"'`
	records := []rumours.Record{{
		Player:         "P" + hostile,
		Position:       "Pos" + hostile,
		CurrentClub:    "C" + hostile,
		InterestedClub: "I" + hostile,
		Probability:    prob(40),
		SourceLink:     "https://example.com/?a=1&b=" + hostile,
		Age:            "A" + hostile,
		Nationality:    "N" + hostile,
		ContractExpiry: "E" + hostile,
		MarketValue:    "V" + hostile,
	}}

	out := Table(records)

	assert.NotContains(t, out, hostile)
	assert.NotContains(t, out, "<b>")
	assert.NotContains(t, out, `&"`)
	for _, prefix := range []string{"P", "Pos", "C", "I", "A", "N", "E", "V"} {
		assert.Contains(t, out, prefix+"&lt;b&gt;&amp;&#34;&#39;")
	}
	assert.Contains(t, out, `href="https://example.com/?a=1&amp;b=&lt;b&gt;&amp;&#34;&#39;"`)
}

// TestTable_SkeletonOnly verifies that, once escaped values are removed, the
// special characters left all belong to the fixed markup
func TestTable_SkeletonOnly(t *testing.T) {
	records := []rumours.Record{{Player: `O'Neil "The Wall" <3 & co`, Position: "Defender"}}

	out := Table(records)
	empty := Table([]rumours.Record{{Position: "Defender"}})

	// The rendered value lives in the first data cell.
	start := strings.Index(out, "<tbody><tr><td>") + len("<tbody><tr><td>")
	end := strings.Index(out[start:], "</td>")
	value := out[start : start+end]

	assert.Equal(t, "O&#39;Neil &#34;The Wall&#34; &lt;3 &amp; co", value)
	assert.Equal(t, empty, strings.Replace(out, value, "", 1))
}

// TestTable_OrderAndShape verifies one header row and one row per record in
// input order
func TestTable_OrderAndShape(t *testing.T) {
	records := []rumours.Record{
		{Player: "Zed", Position: "Defender"},
		{Player: "Amy", Position: "Defender", Probability: prob(70)},
		{Player: "Ben", Position: "Defender"},
	}

	out := Table(records)

	assert.Equal(t, 1, strings.Count(out, "<thead"))
	assert.Equal(t, 4, strings.Count(out, "<tr>"))
	assert.Less(t, strings.Index(out, "Zed"), strings.Index(out, "Amy"))
	assert.Less(t, strings.Index(out, "Amy"), strings.Index(out, "Ben"))
	assert.Contains(t, out, "<td style='text-align:center'>70%</td>")
	assert.NotContains(t, out, "<th>Age</th>", "no profile columns without profile data")
}

// TestTable_Empty verifies an empty list still renders the header
func TestTable_Empty(t *testing.T) {
	out := Table(nil)

	assert.Contains(t, out, "<th>Player</th>")
	assert.Contains(t, out, "<tbody></tbody>")
}

// TestTable_ProfileColumns verifies enrichment data adds columns for every row
func TestTable_ProfileColumns(t *testing.T) {
	records := []rumours.Record{
		{Player: "Max", Position: "Defender", Age: "24", MarketValue: "€10.00m"},
		{Player: "Jan", Position: "Defender"},
	}

	out := Table(records)

	assert.Contains(t, out, "<th>Age</th><th>Nationality</th><th>Contract</th><th>Value</th>")
	assert.Contains(t, out, "€10.00m")
	assert.Equal(t, 2*10, strings.Count(out, "<td"))
}

// TestSourceLink verifies only http(s) links become anchors
func TestSourceLink(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{"empty", "", ""},
		{"https", "https://example.com/a", `<a href="https://example.com/a">Source</a>`},
		{"http upper", "HTTP://example.com/a", `<a href="HTTP://example.com/a">Source</a>`},
		{"javascript", "javascript:alert('x')", "javascript:alert(&#39;x&#39;)"},
		{"relative", "/news/1", "/news/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sourceLink(tt.link))
		})
	}
}

// TestDocument verifies the page wrapper, title escaping and empty notice
func TestDocument(t *testing.T) {
	out := Document("Rumours <L1>", nil)

	assert.True(t, strings.HasPrefix(out, "<html>"))
	assert.True(t, strings.HasSuffix(out, "</body></html>"))
	assert.Contains(t, out, "Rumours &lt;L1&gt;")
	assert.Contains(t, out, "No defender rumours found.")
	assert.NotContains(t, out, "<link", "no external stylesheet")

	assert.Contains(t, Document("", nil), DefaultTitle)
}
