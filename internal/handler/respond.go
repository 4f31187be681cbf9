package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pavelanni/careerquest/internal/i18n"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError sends {"error": msg} with msg localized from msgID.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, map[string]string{"error": i18n.T(r.Context(), msgID)})
}

// decodeBody decodes a JSON object body into v. On failure it writes a 400
// and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Debug("invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusBadRequest, "ErrInvalidBody")
		return false
	}
	return true
}
