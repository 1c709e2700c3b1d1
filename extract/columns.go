package extract

import "strings"

// ColumnMap resolves logical fields to zero-based column indices.
type ColumnMap map[Field]int

// ColumnMapper builds a ColumnMap from a table's header cells.
type ColumnMapper struct {
	Aliases  map[Field][]string
	Defaults ColumnMap
}

// Map returns a mapping for every field in Fields. A header maps a field when
// its lower-cased text contains one of the field's aliases; headers carry
// icon and sort-indicator text, so exact matches would miss them. When
// several headers match the same field the last one wins. Fields no header
// resolves take the mapper's default, then the package default.
func (m ColumnMapper) Map(headers []string) ColumnMap {
	cols := make(ColumnMap, len(Fields))

	for i, header := range headers {
		h := strings.ToLower(Normalize(header))
		if h == "" {
			continue
		}
		for _, field := range Fields {
			if matchesAlias(h, m.Aliases[field]) {
				cols[field] = i
			}
		}
	}

	fallback := DefaultColumns()
	for _, field := range Fields {
		if _, ok := cols[field]; ok {
			continue
		}
		if idx, ok := m.Defaults[field]; ok && idx >= 0 {
			cols[field] = idx
			continue
		}
		cols[field] = fallback[field]
	}

	return cols
}

func matchesAlias(header string, aliases []string) bool {
	for _, alias := range aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias != "" && strings.Contains(header, alias) {
			return true
		}
	}
	return false
}
