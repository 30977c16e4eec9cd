package history

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

type ParquetExportResult struct {
	Data        []byte
	RecordCount int64
}

type parquetRecord struct {
	ID              string `parquet:"id"`
	SessionID       string `parquet:"session_id"`
	Question        string `parquet:"question"`
	Backend         string `parquet:"backend"`
	Model           string `parquet:"model"`
	TableCount      int32  `parquet:"table_count"`
	SQL             string `parquet:"sql"`
	ErrorKind       string `parquet:"error_kind"`
	ErrorMessage    string `parquet:"error_message"`
	LatencyMs       int64  `parquet:"latency_ms"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
}

// EncodeRecordsToParquet writes records as a single Parquet file. An empty
// slice still yields a valid file with the schema and no rows.
func EncodeRecordsToParquet(records []Record) (ParquetExportResult, error) {
	rows := make([]parquetRecord, 0, len(records))
	for _, rec := range records {
		rows = append(rows, parquetRecord{
			ID:              rec.ID,
			SessionID:       rec.SessionID,
			Question:        rec.Question,
			Backend:         rec.Backend,
			Model:           rec.Model,
			TableCount:      int32(rec.TableCount),
			SQL:             rec.SQL,
			ErrorKind:       rec.ErrorKind,
			ErrorMessage:    rec.ErrorMessage,
			LatencyMs:       rec.LatencyMs,
			CreatedAtUnixMs: rec.CreatedAt.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRecord](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return ParquetExportResult{}, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return ParquetExportResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetExportResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(rows)),
	}, nil
}
