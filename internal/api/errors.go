package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/commandq/internal/api/shared"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/service"
	"github.com/phrazzld/commandq/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, queue.ErrUnknownQueue):
		return http.StatusNotFound

	case errors.Is(err, service.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, service.ErrUnknownKind):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, queue.ErrUnknownQueue):
		return "Queue not found"
	case errors.Is(err, service.ErrDuplicate):
		return "An equivalent command is already pending"
	case errors.Is(err, service.ErrUnknownKind):
		return "Unknown command kind"
	case errors.Is(err, service.ErrUnavailable):
		return "Engine is temporarily unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status code and safe message for err. A
// non-empty fallback replaces the generic message of unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError turns validator errors into a short message that
// names the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	if msg := getValidationTagMessage(fe.Tag()); msg != "" {
		return fmt.Sprintf("Invalid %s: %s", field, msg)
	}
	return fmt.Sprintf("Invalid %s", field)
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "gte", "min":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
