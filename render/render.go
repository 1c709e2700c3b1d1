// Package render turns rumour records into HTML suitable for embedding in an
// email body.
package render

import (
	"html"
	"net/url"
	"strings"

	"github.com/pevans/defrumours/rumours"
)

// DefaultTitle heads documents rendered without an explicit title.
const DefaultTitle = "Bundesliga Defender Rumours"

const (
	fontFamily = "Segoe UI,Arial,Helvetica,sans-serif"
	tableStyle = "border-collapse:collapse;font-family:" + fontFamily + ";font-size:14px;"
)

// column is one rendered table column.
type column struct {
	header string
	style  string
	value  func(r rumours.Record) string
}

var baseColumns = []column{
	{header: "Player", value: func(r rumours.Record) string { return r.Player }},
	{header: "Position", value: func(r rumours.Record) string { return r.Position }},
	{header: "Current", value: func(r rumours.Record) string { return r.CurrentClub }},
	{header: "Interested", value: func(r rumours.Record) string { return r.InterestedClub }},
	{header: "Prob", style: "text-align:center", value: rumours.Record.ProbabilityLabel},
}

var profileColumns = []column{
	{header: "Age", style: "text-align:center", value: func(r rumours.Record) string { return r.Age }},
	{header: "Nationality", value: func(r rumours.Record) string { return r.Nationality }},
	{header: "Contract", value: func(r rumours.Record) string { return r.ContractExpiry }},
	{header: "Value", value: func(r rumours.Record) string { return r.MarketValue }},
}

// Table renders records as a single HTML table with one header row and one
// row per record, in input order. Every interpolated value is escaped.
// Profile columns appear only when at least one record carries profile data.
func Table(records []rumours.Record) string {
	cols := baseColumns
	if hasProfile(records) {
		cols = append(append([]column{}, baseColumns...), profileColumns...)
	}

	var b strings.Builder
	b.WriteString("<table border='1' cellspacing='0' cellpadding='6' style='")
	b.WriteString(tableStyle)
	b.WriteString("'>")
	b.WriteString("<thead style='background:#f3f4f6'><tr>")
	for _, c := range cols {
		b.WriteString("<th>" + c.header + "</th>")
	}
	b.WriteString("<th>Link</th></tr></thead><tbody>")

	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("<tr>")
		for _, c := range cols {
			if c.style != "" {
				b.WriteString("<td style='" + c.style + "'>")
			} else {
				b.WriteString("<td>")
			}
			b.WriteString(html.EscapeString(c.value(r)))
			b.WriteString("</td>")
		}
		b.WriteString("<td>")
		b.WriteString(sourceLink(r.SourceLink))
		b.WriteString("</td></tr>")
	}

	b.WriteString("</tbody></table>")
	return b.String()
}

// Document wraps Table in a self-contained page headed by title.
func Document(title string, records []rumours.Record) string {
	if title == "" {
		title = DefaultTitle
	}

	var b strings.Builder
	b.WriteString("<html><head><meta charset='utf-8'><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head><body>")
	b.WriteString("<h3 style='font-family:" + fontFamily + "'>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</h3>")
	if len(records) == 0 {
		b.WriteString("<p style='font-family:" + fontFamily + "'>No defender rumours found.</p>")
	}
	b.WriteString(Table(records))
	b.WriteString("</body></html>")
	return b.String()
}

// sourceLink renders an anchor for http(s) links. Anything else is shown as
// escaped text so a javascript: or data: link never becomes clickable.
func sourceLink(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return html.EscapeString(link)
	}
	return `<a href="` + html.EscapeString(link) + `">Source</a>`
}

func hasProfile(records []rumours.Record) bool {
	for _, r := range records {
		if r.Age != "" || r.Nationality != "" || r.ContractExpiry != "" || r.MarketValue != "" {
			return true
		}
	}
	return false
}
