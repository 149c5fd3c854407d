// Package format renders query results as a terminal table, CSV or JSON.
package format

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kent-id/athenaq"
)

// MaxCellWidth is the widest a table cell is rendered before it is cut with "...".
const MaxCellWidth = 50

const nullText = "NULL"

// FileOutputError is a failure writing results to a file.
type FileOutputError struct {
	Path string
	Err  error
}

func (e *FileOutputError) Error() string {
	return fmt.Sprintf("failed to write output file %q: %v", e.Path, e.Err)
}

func (e *FileOutputError) Unwrap() error {
	return e.Err
}

// Table renders result as a bordered table. NULL cells show as "NULL".
func Table(result *athenaq.QueryResult) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(true).
		Headers(result.ColumnNames()...)

	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = truncate(Cell(v), MaxCellWidth)
		}
		t.Row(cells...)
	}

	out := t.String()
	if result.RowCount == 0 {
		out += "\n\n(0 rows returned)"
	}
	return out
}

// Cell formats one value for display.
func Cell(v athenaq.CellValue) string {
	switch val := v.(type) {
	case nil:
		return nullText
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

// WriteCSV writes a header row followed by one record per row; NULL is written as an empty field.
func WriteCSV(w io.Writer, result *athenaq.QueryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(result.ColumnNames()); err != nil {
		return err
	}
	for _, row := range result.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				record[i] = Cell(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type document struct {
	Columns  []athenaq.Column `json:"columns"`
	Rows     []object         `json:"rows"`
	RowCount int              `json:"row_count"`
}

// object is a row encoded as a JSON object whose keys keep column order.
type object struct {
	columns []athenaq.Column
	values  []athenaq.CellValue
}

func (o object) MarshalJSON() ([]byte, error) {
	last := make(map[string]int, len(o.columns))
	for i, c := range o.columns {
		last[c.Name] = i
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for i, c := range o.columns {
		if last[c.Name] != i {
			continue
		}
		var v athenaq.CellValue
		if i < len(o.values) {
			v = o.values[i]
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteJSON writes {"columns": [...], "rows": [{col: value}], "row_count": n}, indented.
func WriteJSON(w io.Writer, result *athenaq.QueryResult) error {
	doc := document{
		Columns:  result.Columns,
		Rows:     make([]object, len(result.Rows)),
		RowCount: result.RowCount,
	}
	for i, row := range result.Rows {
		doc.Rows[i] = object{columns: result.Columns, values: row}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteFile writes result to path using writeFn, reporting any failure as *FileOutputError.
func WriteFile(path string, result *athenaq.QueryResult, writeFn func(io.Writer, *athenaq.QueryResult) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &FileOutputError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &FileOutputError{Path: path, Err: cerr}
		}
	}()

	if err := writeFn(f, result); err != nil {
		return &FileOutputError{Path: path, Err: err}
	}
	return nil
}

// OutputPath is the file a named query writes to. With several queries in one run
// the name is inserted before the extension: "out.csv" becomes "out_<name>.csv".
func OutputPath(base, queryName string, multiple bool) string {
	if !multiple {
		return base
	}
	ext := filepath.Ext(base)
	if ext == "" || strings.HasSuffix(strings.TrimSuffix(base, ext), string(filepath.Separator)) {
		return base + "_" + queryName
	}
	return strings.TrimSuffix(base, ext) + "_" + queryName + ext
}
