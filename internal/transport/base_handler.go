package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	errors "github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a bare error response for failures that never became an AppError.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.Logger.Error("http error", "status", status, "message", message)
	h.WriteJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    status,
			"message": message,
		},
	})
}

// HandleServiceError renders err with the status its AppError carries.
// Anything else is logged and hidden behind a generic 500.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	h.HandleServiceErrorWithStatus(w, err, 0)
}

// HandleServiceErrorWithStatus is HandleServiceError with the status pinned,
// for routes whose contract allows a single error status.
func (h *BaseHandler) HandleServiceErrorWithStatus(w http.ResponseWriter, err error, status int) {
	appErr, ok := errors.IsAppError(err)
	if !ok {
		appErr = errors.NewInternalError("internal server error", err)
	}

	code, body := appErr.ToHTTPResponse()
	if status != 0 {
		code = status
	}

	if code >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "status", code, "type", appErr.Type, "error", err)
	} else {
		h.Logger.Info("request rejected", "status", code, "code", appErr.Code, "reason", appErr.GetDetailedMessage())
	}

	h.WriteJSON(w, code, body)
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}
