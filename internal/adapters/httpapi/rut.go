package httpapi

import (
	"errors"
	"net/http"

	"agroconsole/pkg/rut"
)

func (h *Handler) validateRUT(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "value required")
		return
	}
	resp := map[string]any{"value": value, "valid": true, "formatted": rut.Format(value)}
	if err := rut.Validate(value); err != nil {
		resp["valid"] = false
		resp["error"] = err.Error()
		if errors.Is(err, rut.ErrCheckDigit) {
			clean := rut.Normalize(value)
			if dv, derr := rut.CheckDigit(clean[:len(clean)-1]); derr == nil {
				resp["expected_check_digit"] = dv
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
