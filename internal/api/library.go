package api

import (
	"net/http"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/observability"
)

func libraryConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Library == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "LIBRARY_NOT_CONFIGURED", "schema library is not enabled", false, nil)
		return false
	}
	return true
}

func handleListLibrary(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !libraryConfigured(deps, w, r) {
		return
	}
	entries, err := deps.Library.List(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": entries})
}

// handleSaveLibrary stores the session's current schema under the path name.
func handleSaveLibrary(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if !libraryConfigured(deps, w, r) {
		return
	}
	sess := sessionFromContext(r.Context())
	entry, err := deps.Library.Save(r.Context(), r.PathValue("name"), sess.Schema.Snapshot())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleLoadLibrary replaces the session schema with a saved document. A
// document that fails to parse leaves the session unchanged.
func handleLoadLibrary(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if !libraryConfigured(deps, w, r) {
		return
	}
	doc, err := deps.Library.Load(r.Context(), r.PathValue("name"))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	sess := sessionFromContext(r.Context())
	sess.Schema.Replace(doc)
	observability.ObserveSchemaChange("library_load")
	writeJSON(w, http.StatusOK, newSchemaView(sess.Schema.Snapshot()))
}

func handleDeleteLibrary(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !libraryConfigured(deps, w, r) {
		return
	}
	if err := deps.Library.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
