package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "tenantplane/pkg/domain-errors"
)

// DecodeJSON decodes a single JSON object from the request body. On failure
// it writes the error response and returns nil, false:
//
//   - an empty body or malformed JSON is a bad request
//   - a body cut off by request.BodyLimit is payload_too_large
//   - anything after the first object is a bad request
//
// Usage:
//
//	req, ok := httputil.DecodeJSON[createRoomRequest](w, r, m.logger, ctx, requestID)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&req)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errTrailingData
	}
	if err == nil {
		return &req, true
	}

	logger.WarnContext(ctx, "failed to decode request body",
		"error", err,
		"request_id", requestID,
	)
	WriteError(w, decodeError(err))
	return nil, false
}

var errTrailingData = errors.New("request body must contain a single JSON object")

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return dErrors.Newf(dErrors.CodePayloadTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, io.EOF):
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	case errors.Is(err, errTrailingData):
		return dErrors.New(dErrors.CodeBadRequest, errTrailingData.Error())
	default:
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
}

// Validatable is implemented by request types that check their own fields.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that canonicalize input,
// for example trimming or lower-casing slugs.
type Normalizable interface {
	Normalize()
}

// Sanitizable is implemented by request types that strip unsafe input.
type Sanitizable interface {
	Sanitize()
}

// PrepareRequest runs Sanitize, Normalize and Validate in that order, each
// only when req implements it.
func PrepareRequest(req any) error {
	if s, ok := req.(Sanitizable); ok {
		s.Sanitize()
	}
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare is DecodeJSON followed by PrepareRequest. Validation
// errors that already carry a domain code keep it; plain errors become
// validation failures.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}

	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		var domainErr *dErrors.Error
		if !errors.As(err, &domainErr) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}

	return req, true
}
