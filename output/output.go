// Package output writes a run's result set, its HTML rendering and, when
// extraction came up empty, diagnostic artifacts to a directory.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pevans/defrumours/extract"
	"github.com/pevans/defrumours/rumours"
)

// File names inside the output directory.
const (
	ResultFile    = "defender_rumours.json"
	HTMLFile      = "defender_rumours.html"
	DebugHTMLFile = "debug.html"
	RowsFile      = "rows.json"
)

// MaxDiagnosticRows caps the rows captured in rows.json.
const MaxDiagnosticRows = 50

// Diagnostics is the rows.json document: enough of the extraction pass to
// see why a page produced no records.
type Diagnostics struct {
	URL                string              `json:"url"`
	TableFound         bool                `json:"table_found"`
	TotalRows          int                 `json:"total_rows"`
	SkippedRows        int                 `json:"skipped_rows"`
	ParsedRows         []extract.RumourRow `json:"parsed_rows"`
	DefenderItemsCount int                 `json:"defender_items_count"`
	ColumnIndexMap     extract.ColumnMap   `json:"column_index_map"`
	Headers            []string            `json:"headers"`
}

// NewDiagnostics captures page for url. records is the number of Records
// that survived filtering.
func NewDiagnostics(url string, page *extract.Page, records int) Diagnostics {
	d := Diagnostics{
		URL:                url,
		ParsedRows:         []extract.RumourRow{},
		DefenderItemsCount: records,
		ColumnIndexMap:     extract.ColumnMap{},
		Headers:            []string{},
	}
	if page == nil {
		return d
	}

	d.TableFound = page.TableFound
	d.TotalRows = page.TotalRows
	d.SkippedRows = page.Skipped
	if page.Columns != nil {
		d.ColumnIndexMap = page.Columns
	}
	if page.Headers != nil {
		d.Headers = page.Headers
	}
	rows := page.Rows
	if len(rows) > MaxDiagnosticRows {
		rows = rows[:MaxDiagnosticRows]
	}
	if rows != nil {
		d.ParsedRows = rows
	}
	return d
}

// Writer writes output files into a directory.
type Writer struct {
	dir string
}

// NewWriter creates the directory if needed and returns a Writer for it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the location of name inside the output directory.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteResult writes the JSON result set and its HTML rendering.
func (w *Writer) WriteResult(rs rumours.ResultSet, html string) error {
	data, err := encode(rs)
	if err != nil {
		return fmt.Errorf("failed to marshal result set: %w", err)
	}
	if err := w.writeFile(ResultFile, data); err != nil {
		return fmt.Errorf("failed to write result set: %w", err)
	}
	if err := w.writeFile(HTMLFile, []byte(html)); err != nil {
		return fmt.Errorf("failed to write HTML rendering: %w", err)
	}
	return nil
}

// WriteDiagnostics writes the raw fetched markup and the rows.json capture.
func (w *Writer) WriteDiagnostics(raw []byte, diag Diagnostics) error {
	if err := w.writeFile(DebugHTMLFile, raw); err != nil {
		return fmt.Errorf("failed to write debug markup: %w", err)
	}
	data, err := encode(diag)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	if err := w.writeFile(RowsFile, data); err != nil {
		return fmt.Errorf("failed to write diagnostics: %w", err)
	}
	return nil
}

// ReadResult reads back the last written result set. It returns nil, nil
// when no result has been written yet.
func (w *Writer) ReadResult() (*rumours.ResultSet, error) {
	data, err := os.ReadFile(w.Path(ResultFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read result set: %w", err)
	}

	var rs rumours.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result set: %w", err)
	}
	return &rs, nil
}

// writeFile replaces name in one step: the data goes to a temporary file in
// the same directory which is then renamed over name. Readers see the old
// file or the new one, never a partial write.
func (w *Writer) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), w.Path(name))
}

// encode marshals v as indented JSON. HTML escaping is off so names such as
// "Brighton & Hove Albion" stay readable in the file.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
