package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/logger"
)

const maxRequestBodySize = 64 << 10 // 64 KB

// invalidationWarning is sent in the Warning header when a mutation committed
// but its routing cache eviction did not.
const invalidationWarning = `199 tenantgate "routing cache invalidation failed; change visible within cache TTL"`

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, fieldName+" is required")
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeMutation reports the result of a registry mutation. A mutation that
// committed but failed to evict its routing entries still answers with the
// committed object and carries a Warning header.
func writeMutation(w http.ResponseWriter, r *http.Request, status int, res any, err error) {
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidationFailed) {
			writeDomainError(w, r, err, "not found")
			return
		}
		w.Header().Set("Warning", invalidationWarning)
	}
	if res == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, res)
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, clientMessage(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrUnknownTenant):
		writeError(w, http.StatusNotFound, "unknown tenant")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrTenantInactive):
		writeError(w, http.StatusForbidden, "tenant inactive")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, clientMessage(err, domain.ErrInvalidState))
	case errors.Is(err, domain.ErrResolutionTimeout):
		writeError(w, http.StatusServiceUnavailable, "tenant resolution timed out")
	case errors.Is(err, domain.ErrIntegrity):
		// Already alarmed by the service; operators reconcile by hand.
		writeError(w, http.StatusInternalServerError, "provisioning rollback failed; operator intervention required")
	case errors.Is(err, domain.ErrProvisioningFailure):
		logger.From(r.Context()).Warn("provisioning failed", "error", err)
		writeError(w, http.StatusInternalServerError, "provisioning failed")
	default:
		writeInternalError(w, r, err)
	}
}

// clientMessage returns the innermost message of err after the sentinel.
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logger.From(r.Context()).Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
