package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/schema"
)

type addTableRequest struct {
	Name    string `json:"name"`
	Columns string `json:"columns"`
}

type tableView struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

type schemaView struct {
	Schema json.RawMessage `json:"schema"`
	Tables []tableView     `json:"tables"`
}

func newSchemaView(s *schema.Schema) schemaView {
	raw, err := s.MarshalJSON()
	if err != nil {
		raw = []byte("{}")
	}
	tables := make([]tableView, 0, s.Len())
	for _, table := range s.Tables() {
		columns := table.Columns
		if columns == nil {
			columns = []string{}
		}
		tables = append(tables, tableView{Name: table.Name, Columns: columns})
	}
	return schemaView{Schema: raw, Tables: tables}
}

func handleGetSchema(_ Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, newSchemaView(sess.Schema.Snapshot()))
}

func handleAddTable(_ Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	var req addTableRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	sess := sessionFromContext(r.Context())
	if err := sess.Schema.AddTable(req.Name, req.Columns); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	observability.ObserveSchemaChange("add_table")
	writeJSON(w, http.StatusOK, newSchemaView(sess.Schema.Snapshot()))
}

func handleClearSchema(_ Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	sess.Schema.Clear()
	observability.ObserveSchemaChange("clear")
	writeJSON(w, http.StatusOK, newSchemaView(sess.Schema.Snapshot()))
}

// handleImportSchema accepts the document either as the raw request body or
// as the "file" part of a multipart form, the way a browser upload sends it.
func handleImportSchema(_ Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	data, err := readSchemaUpload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "schema file is too large", false, map[string]any{"limit_bytes": maxErr.Limit})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error(), false, nil)
		return
	}
	sess := sessionFromContext(r.Context())
	if err := sess.Schema.Import(data); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	observability.ObserveSchemaChange("import")
	writeJSON(w, http.StatusOK, newSchemaView(sess.Schema.Snapshot()))
}

func handleExportSchema(_ Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	data, err := sess.Schema.Export()
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="schema.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func readSchemaUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return io.ReadAll(r.Body)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("multipart upload must include a \"file\" part: %w", err)
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body is too large", false, map[string]any{"limit_bytes": maxErr.Limit})
			return false
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}
