// Package library saves named schema documents to object storage so they can
// be loaded into any session later.
package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/storage"
)

const DefaultMaxDocumentBytes = 1 << 20

var ErrNotFound = errors.New("saved schema not found")

type Entry struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	SavedAt   time.Time `json:"saved_at,omitempty"`
}

type Service struct {
	store    storage.ObjectStore
	maxBytes int64
}

func NewService(store storage.ObjectStore, maxBytes int64) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentBytes
	}
	return &Service{store: store, maxBytes: maxBytes}, nil
}

// Save writes s under name, replacing any earlier document with that name.
func (s *Service) Save(ctx context.Context, name string, doc *schema.Schema) (Entry, error) {
	key, err := storage.SchemaKey(name)
	if err != nil {
		return Entry{}, apperr.Validation("name", "%v", err)
	}
	data, err := doc.Export()
	if err != nil {
		return Entry{}, fmt.Errorf("encode schema %q: %w", name, err)
	}
	info, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/json"})
	if err != nil {
		return Entry{}, fmt.Errorf("save schema %q: %w", name, err)
	}
	return Entry{Name: name, SizeBytes: int64(len(data)), SavedAt: info.LastModified}, nil
}

// Load reads and decodes the document saved under name. A document that is
// not a valid schema yields a ParseError.
func (s *Service) Load(ctx context.Context, name string) (*schema.Schema, error) {
	key, err := storage.SchemaKey(name)
	if err != nil {
		return nil, apperr.Validation("name", "%v", err)
	}
	body, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("load schema %q: %w", name, err)
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read schema %q: %w", name, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperr.Parse(fmt.Sprintf("saved schema %q exceeds %d bytes", name, s.maxBytes), nil)
	}
	return schema.Parse(data)
}

func (s *Service) List(ctx context.Context) ([]Entry, error) {
	objects, err := s.store.List(ctx, storage.SchemaDir)
	if err != nil {
		return nil, fmt.Errorf("list saved schemas: %w", err)
	}
	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		name, ok := storage.SchemaNameFromKey(obj.Key)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Name: name, SizeBytes: obj.Size, SavedAt: obj.LastModified})
	}
	return entries, nil
}

// Delete removes the document saved under name. A name that was never saved
// yields ErrNotFound.
func (s *Service) Delete(ctx context.Context, name string) error {
	key, err := storage.SchemaKey(name)
	if err != nil {
		return apperr.Validation("name", "%v", err)
	}
	if _, err := s.store.Stat(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("stat schema %q: %w", name, err)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete schema %q: %w", name, err)
	}
	return nil
}
