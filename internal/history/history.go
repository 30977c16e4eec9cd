// Package history records the outcome of every conversion so operators can
// review what was asked and what came back.
package history

import (
	"context"
	"time"
)

type Record struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Question     string    `json:"question"`
	Backend      string    `json:"backend"`
	Model        string    `json:"model"`
	TableCount   int       `json:"table_count"`
	SQL          string    `json:"sql,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Succeeded reports whether the conversion produced a query.
func (r Record) Succeeded() bool {
	return r.ErrorKind == ""
}

type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}

type Store interface {
	Recorder
	Lister
}

// Nop discards records. It is used when history is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }

func (Nop) ListRecent(context.Context, int) ([]Record, error) { return nil, nil }
