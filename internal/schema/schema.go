// Package schema models the user-declared catalog of table and column names
// that enriches a conversion prompt. Nothing here is checked against a real
// database.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Schema is an insertion-ordered mapping of table name to column names.
// The zero value is not usable; call New.
type Schema struct {
	tables []Table
	index  map[string]int
}

func New() *Schema {
	return &Schema{index: map[string]int{}}
}

func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tables)
}

func (s *Schema) IsEmpty() bool {
	return s.Len() == 0
}

// Tables returns a copy of the tables in iteration order.
func (s *Schema) Tables() []Table {
	if s == nil {
		return nil
	}
	out := make([]Table, 0, len(s.tables))
	for _, table := range s.tables {
		out = append(out, Table{Name: table.Name, Columns: append([]string{}, table.Columns...)})
	}
	return out
}

// AddTable inserts or overwrites name with the comma-separated column list.
// Blank column tokens are dropped; a table with no remaining columns is
// rejected and the schema is left unchanged.
func (s *Schema) AddTable(name, columns string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("name", "table name is required")
	}
	cols := SplitColumns(columns)
	if len(cols) == 0 {
		return apperr.Validation("columns", "at least one column name is required")
	}
	s.put(name, cols)
	return nil
}

func (s *Schema) Clone() *Schema {
	out := New()
	if s == nil {
		return out
	}
	for _, table := range s.tables {
		out.put(table.Name, append([]string{}, table.Columns...))
	}
	return out
}

// MarshalJSON encodes the schema as a JSON object keyed by table name,
// keeping iteration order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if s != nil {
		for i, table := range s.tables {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(table.Name)
			if err != nil {
				return nil, fmt.Errorf("encode table name %q: %w", table.Name, err)
			}
			columns := table.Columns
			if columns == nil {
				columns = []string{}
			}
			value, err := json.Marshal(columns)
			if err != nil {
				return nil, fmt.Errorf("encode columns of %q: %w", table.Name, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Export returns the schema as pretty-printed JSON with a two-space indent.
func (s *Schema) Export() ([]byte, error) {
	compact, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indent schema json: %w", err)
	}
	return out.Bytes(), nil
}

// Parse decodes a schema document: a JSON object whose keys are table names
// and whose values are arrays of column-name strings. Key order is kept.
// A repeated key overwrites the earlier value in place.
func Parse(data []byte) (*Schema, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	tok, err := decoder.Token()
	if err != nil {
		return nil, apperr.Parse("invalid schema JSON", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, apperr.Parse("schema must be a JSON object mapping table names to column lists", nil)
	}

	out := New()
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return nil, apperr.Parse("invalid schema JSON", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, apperr.Parse("invalid schema JSON", fmt.Errorf("unexpected token %v", keyTok))
		}
		columns, err := decodeColumns(decoder)
		if err != nil {
			return nil, apperr.Parse(fmt.Sprintf("table %q: columns must be an array of strings", name), err)
		}
		out.put(name, columns)
	}
	if _, err := decoder.Token(); err != nil {
		return nil, apperr.Parse("invalid schema JSON", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, apperr.Parse("invalid schema JSON", errors.New("unexpected data after schema object"))
	}
	return out, nil
}

// decodeColumns reads one column list. encoding/json turns a null array or a
// null element into a zero value, so both are checked explicitly.
func decodeColumns(decoder *json.Decoder) ([]string, error) {
	var raw []*string
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("got null")
	}
	columns := make([]string, len(raw))
	for i, column := range raw {
		if column == nil {
			return nil, fmt.Errorf("element %d is null", i)
		}
		columns[i] = *column
	}
	return columns, nil
}

// SplitColumns splits a comma-separated column list, trimming each token and
// dropping blanks.
func SplitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (s *Schema) put(name string, columns []string) {
	if i, ok := s.index[name]; ok {
		s.tables[i].Columns = columns
		return
	}
	s.index[name] = len(s.tables)
	s.tables = append(s.tables, Table{Name: name, Columns: columns})
}
