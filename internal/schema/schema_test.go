package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

func TestAddTableThenExportContainsColumns(t *testing.T) {
	store := NewStore()
	if err := store.AddTable("orders", "id, total"); err != nil {
		t.Fatalf("AddTable() error = %v", err)
	}

	raw, err := store.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	var decoded map[string][]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if !reflect.DeepEqual(decoded["orders"], []string{"id", "total"}) {
		t.Fatalf("orders = %#v", decoded["orders"])
	}
}

func TestExportIsPrettyPrinted(t *testing.T) {
	s := New()
	if err := s.AddTable("orders", "id,total"); err != nil {
		t.Fatalf("AddTable() error = %v", err)
	}
	raw, err := s.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	want := "{\n  \"orders\": [\n    \"id\",\n    \"total\"\n  ]\n}"
	if string(raw) != want {
		t.Fatalf("Export() = %q, want %q", raw, want)
	}
}

func TestExportEmptySchema(t *testing.T) {
	raw, err := New().Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("Export() = %q", raw)
	}
}

func TestAddTableOverwritesInPlace(t *testing.T) {
	s := New()
	_ = s.AddTable("customers", "id")
	_ = s.AddTable("orders", "id")
	if err := s.AddTable("customers", "id, email"); err != nil {
		t.Fatalf("AddTable() error = %v", err)
	}

	tables := s.Tables()
	if len(tables) != 2 {
		t.Fatalf("len(tables) = %d", len(tables))
	}
	if tables[0].Name != "customers" || !reflect.DeepEqual(tables[0].Columns, []string{"id", "email"}) {
		t.Fatalf("tables[0] = %#v", tables[0])
	}
}

func TestAddTableRejectsMissingInput(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		columns string
		field   string
	}{
		{name: "blank table", table: "  ", columns: "id", field: "name"},
		{name: "blank columns", table: "orders", columns: "", field: "columns"},
		{name: "only commas", table: "orders", columns: " , ,", field: "columns"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New()
			err := s.AddTable(tc.table, tc.columns)
			var validationErr *apperr.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("AddTable() error = %v, want ValidationError", err)
			}
			if validationErr.Field != tc.field {
				t.Fatalf("Field = %q, want %q", validationErr.Field, tc.field)
			}
			if !s.IsEmpty() {
				t.Fatal("schema should be unchanged")
			}
		})
	}
}

func TestAddTableDropsBlankColumns(t *testing.T) {
	s := New()
	if err := s.AddTable("orders", "id,, total ,"); err != nil {
		t.Fatalf("AddTable() error = %v", err)
	}
	cols, _ := columnsOf(s, "orders")
	if !reflect.DeepEqual(cols, []string{"id", "total"}) {
		t.Fatalf("columns = %#v", cols)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	doc := `{
    "customers": ["customer_id", "name", "email", "join_date"],
    "orders": ["order_id", "customer_id", "order_date", "total_amount"],
    "products": ["product_id", "name", "category", "price"],
    "audit": []
}`
	store := NewStore()
	if err := store.Import([]byte(doc)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	raw, err := store.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var want, got map[string][]string
	if err := json.Unmarshal([]byte(doc), &want); err != nil {
		t.Fatalf("decode doc: %v", err)
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip = %#v, want %#v", got, want)
	}
}

func TestParseKeepsDocumentOrder(t *testing.T) {
	s, err := Parse([]byte(`{"zeta":["a"],"alpha":["b"],"mid":["c"]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	var names []string
	for _, table := range s.Tables() {
		names = append(names, table.Name)
	}
	if strings.Join(names, ",") != "zeta,alpha,mid" {
		t.Fatalf("order = %v", names)
	}
}

func TestImportMalformedLeavesStoreUnchanged(t *testing.T) {
	inputs := []string{
		`{"orders": ["id"`,
		`["orders"]`,
		`{"orders": "id,total"}`,
		`{"orders": [1, 2]}`,
		`{"orders": null}`,
		`{"orders": ["id", null]}`,
		`{"orders": ["id"]} trailing`,
		``,
	}
	for _, input := range inputs {
		store := NewStore()
		if err := store.AddTable("keep", "id"); err != nil {
			t.Fatalf("AddTable() error = %v", err)
		}
		err := store.Import([]byte(input))
		var parseErr *apperr.ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("Import(%q) error = %v, want ParseError", input, err)
		}
		snapshot := store.Snapshot()
		if snapshot.Len() != 1 {
			t.Fatalf("Import(%q) changed store: len = %d", input, snapshot.Len())
		}
		if _, ok := columnsOf(snapshot, "keep"); !ok {
			t.Fatalf("Import(%q) dropped existing table", input)
		}
	}
}

func TestClearEmptiesStore(t *testing.T) {
	store := NewStore()
	_ = store.AddTable("orders", "id")
	store.Clear()
	if store.Len() != 0 {
		t.Fatalf("Len() = %d", store.Len())
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	store := NewStore()
	_ = store.AddTable("orders", "id")
	snapshot := store.Snapshot()
	_ = store.AddTable("orders", "id, total")

	cols, _ := columnsOf(snapshot, "orders")
	if !reflect.DeepEqual(cols, []string{"id"}) {
		t.Fatalf("snapshot columns = %#v", cols)
	}
}

func columnsOf(s *Schema, name string) ([]string, bool) {
	for _, table := range s.Tables() {
		if table.Name == name {
			return table.Columns, true
		}
	}
	return nil, false
}
