package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bilancio/internal/auth"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/trace"
)

// User facing messages for domain errors.
const (
	msgSalaryNotSet     = "Salary not set for this user. Please contact admin."
	msgBudgetExceeded   = "Expense exceeds monthly salary limit"
	msgUserNotFound     = "User does not exist"
	msgNoData           = "No expense data available"
	msgBadCredentials   = "No active account found with the given credentials"
	msgNotAuthenticated = "Authentication credentials were not provided."
	msgBadToken         = "Given token not valid for any token type"
	msgForbidden        = "You do not have permission to perform this action."
	msgInUse            = "Payment method is used by existing expenses and cannot be deleted."
)

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err)
	}
}

// writeError maps err onto a status code and body. Anything unrecognised is
// logged and reported as a 500 carrying only the request id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := core.AsValidation(err); ok {
		writeJSON(w, r, http.StatusBadRequest, verr.Fields)
		return
	}
	switch {
	case errors.Is(err, core.ErrSalaryNotConfigured):
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": msgSalaryNotSet})
	case errors.Is(err, core.ErrBudgetExceeded):
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": msgBudgetExceeded})
	case errors.Is(err, core.ErrUserNotFound):
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"user_id": msgUserNotFound})
	case errors.Is(err, core.ErrNoData):
		writeJSON(w, r, http.StatusNotFound, map[string]string{"message": msgNoData})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, r, http.StatusNotFound, detail("Not found."))
	case errors.Is(err, core.ErrPaymentMethodInUse):
		writeJSON(w, r, http.StatusConflict, detail(msgInUse))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, r, http.StatusUnauthorized, detail(msgBadCredentials))
	case errors.Is(err, auth.ErrInvalidToken):
		writeJSON(w, r, http.StatusUnauthorized, detail(msgBadToken))
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		body := detail("Internal server error.")
		if id := trace.RequestID(r.Context()); id != "" {
			body["request_id"] = id
		}
		writeJSON(w, r, http.StatusInternalServerError, body)
	}
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusTooManyRequests, detail("Request was throttled."))
}

// decodeJSON reads a JSON object body into dst. Problems come back as a
// validation error on non_field_errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return core.FieldError("non_field_errors", fmt.Sprintf("Unsupported media type %q in request.", ct))
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &maxErr):
			return core.FieldError("non_field_errors", "Request body too large.")
		default:
			return core.FieldError("non_field_errors", "JSON parse error - "+err.Error())
		}
	}
	return nil
}
