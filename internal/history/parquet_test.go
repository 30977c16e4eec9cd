package history

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

func TestEncodeRecordsToParquet(t *testing.T) {
	created := time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)
	records := []Record{
		{
			ID:         "r-1",
			SessionID:  "s-1",
			Question:   "Show me all customers",
			Backend:    "text",
			Model:      "google/flan-t5-xl",
			TableCount: 2,
			SQL:        "SELECT * FROM customers;",
			LatencyMs:  420,
			CreatedAt:  created,
		},
		{
			ID:           "r-2",
			SessionID:    "s-1",
			Question:     "Top products",
			Backend:      "text",
			Model:        "google/flan-t5-xl",
			ErrorKind:    "inference",
			ErrorMessage: "inference endpoint returned 500",
			CreatedAt:    created.Add(time.Minute),
		},
	}

	result, err := EncodeRecordsToParquet(records)
	if err != nil {
		t.Fatalf("EncodeRecordsToParquet() error = %v", err)
	}
	if result.RecordCount != 2 {
		t.Fatalf("RecordCount = %d", result.RecordCount)
	}

	reader := parquet.NewGenericReader[parquetRecord](bytes.NewReader(result.Data))
	defer func() { _ = reader.Close() }()
	rows := make([]parquetRecord, 2)
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("read rows = %d", count)
	}
	if rows[0].SQL != "SELECT * FROM customers;" || rows[0].TableCount != 2 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].ErrorKind != "inference" || rows[1].CreatedAtUnixMs != created.Add(time.Minute).UnixMilli() {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func TestEncodeRecordsToParquetEmpty(t *testing.T) {
	result, err := EncodeRecordsToParquet(nil)
	if err != nil {
		t.Fatalf("EncodeRecordsToParquet(nil) error = %v", err)
	}
	if result.RecordCount != 0 || len(result.Data) == 0 {
		t.Fatalf("result = %d rows, %d bytes", result.RecordCount, len(result.Data))
	}
	reader := parquet.NewGenericReader[parquetRecord](bytes.NewReader(result.Data))
	defer func() { _ = reader.Close() }()
	if reader.NumRows() != 0 {
		t.Fatalf("NumRows() = %d", reader.NumRows())
	}
}

func TestNopStore(t *testing.T) {
	var store Store = Nop{}
	if err := store.Record(context.Background(), Record{}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	records, err := store.ListRecent(context.Background(), 10)
	if err != nil || len(records) != 0 {
		t.Fatalf("ListRecent() = %v, %v", records, err)
	}
}
