// Package httputil holds the JSON response and request helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/requestcontext"
)

// MaxBodyBytes bounds decoded request bodies.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the error body written by WriteError.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and writes the error body.
// Errors without a domain code are treated as internal.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)

	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, status, resp)
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeLockNotExpired:
		return http.StatusLocked
	}

	switch {
	case dErrors.IsAuthorizationCode(code):
		return http.StatusForbidden
	case dErrors.IsStateCode(code):
		return http.StatusConflict
	case dErrors.IsEligibilityCode(code), dErrors.IsArithmeticCode(code):
		return http.StatusUnprocessableEntity
	case dErrors.IsBoundsCode(code):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Validatable is implemented by request bodies. Validate may normalize fields
// and cache parsed values on the receiver.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes a JSON body into T and validates it. On failure it
// writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}

// RequireActor returns the authenticated actor, or writes 401 and returns false.
func RequireActor(w http.ResponseWriter, r *http.Request) (id.ActorID, bool) {
	actor := requestcontext.ActorID(r.Context())
	if actor.IsNil() {
		WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.ActorID{}, false
	}
	return actor, true
}
