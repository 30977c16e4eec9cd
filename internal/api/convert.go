package api

import (
	"net/http"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
)

func handleConvert(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Converter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONVERT_NOT_CONFIGURED", "conversion is not configured", false, nil)
		return
	}
	var req nl2sql.Request
	if !decodeJSONBody(w, r, &req) {
		return
	}
	sess := sessionFromContext(r.Context())
	result, err := deps.Converter.Convert(r.Context(), sess, req)
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
