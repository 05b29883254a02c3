package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
)

// ErrorResponse uses the FastAPI shape so the backend client can read the
// local mode surface the same way it reads the store backend.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Detail  string         `json:"detail"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := ierr.HTTPStatusFromErr(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "error", err, "status", status)
	}

	detail := ierr.Reason(err)
	if detail == "" {
		detail = "An unexpected error occurred"
	}
	writeJSON(w, status, ErrorResponse{
		Code:    ierr.CodeFromErr(err),
		Detail:  detail,
		Details: safeDetails(err),
	})
}

// safeDetails collects the details attached with WithReportableDetails.
func safeDetails(err error) map[string]any {
	details := make(map[string]any)
	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			raw, ok := strings.CutPrefix(payload, "__json__:")
			if !ok {
				continue
			}
			var m map[string]any
			if json.Unmarshal([]byte(raw), &m) == nil {
				for k, v := range m {
					details[k] = v
				}
			}
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation)
	}
	return nil
}
