package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/quotesapi/internal/auth"
)

// APIError represents a structured API error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", slog.Any("error", err))
	}
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"success": true,
		"data":    data,
	})
}

// statusOf maps an error kind to the HTTP status and error code.
func statusOf(kind auth.Kind) (int, string) {
	switch kind {
	case auth.KindInvalidCredential:
		return http.StatusBadRequest, "INVALID_CREDENTIAL"
	case auth.KindUnauthorized:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case auth.KindForbidden:
		return http.StatusForbidden, "FORBIDDEN"
	case auth.KindDuplicateEmail:
		return http.StatusBadRequest, "DUPLICATE_EMAIL"
	case auth.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case auth.KindConflict:
		return http.StatusConflict, "CONFLICT"
	case auth.KindDelivery:
		return http.StatusBadGateway, "DELIVERY_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeAuthError renders a domain error. Internal causes are logged and
// replaced by a generic message.
func (a *App) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	status, code := statusOf(kind)
	if kind == auth.KindInternal {
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeError(w, status, code, auth.MessageOf(err))
}

// writeValidationError reports the first failing field.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", fieldMessage(verrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "pwbytes":
		return fmt.Sprintf("%s must be at most %d bytes long", field, auth.MaxPasswordBytes)
	case "jwt":
		return fmt.Sprintf("%s must be a token", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, strings.ToLower(fe.Tag()))
	}
}
