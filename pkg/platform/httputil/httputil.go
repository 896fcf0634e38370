package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "tenantplane/pkg/domain-errors"
)

// ErrorResponse is the uniform failure envelope returned by every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// Internal errors never expose their message; the caller gets a generic one.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && domainErr.Code != dErrors.CodeInternal {
		message := domainErr.Message
		if message == "" {
			message = string(domainErr.Code)
		}
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), ErrorResponse{
			Message: message,
			Error:   DomainCodeToHTTPCode(domainErr.Code),
		})
		return
	}

	message := "internal server error"
	if domainErr != nil && domainErr.Message != "" {
		message = domainErr.Message
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Message: message,
		Error:   DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound, dErrors.CodeTenantNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvariantViolation, dErrors.CodeTenantRequired:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeModuleNotSubscribed:
		return http.StatusForbidden
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the error code in the JSON envelope.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeUnavailable:
		return "unavailable"
	case dErrors.CodePayloadTooLarge:
		return "payload_too_large"
	case dErrors.CodeTenantRequired:
		return "tenant_required"
	case dErrors.CodeTenantNotFound:
		return "tenant_not_found"
	case dErrors.CodeModuleNotSubscribed:
		return "module_not_subscribed"
	default:
		return "internal_error"
	}
}
