package httputil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "sahara/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeValidation:              http.StatusBadRequest,
		dErrors.CodeUnauthorized:            http.StatusUnauthorized,
		dErrors.CodeNotFound:                http.StatusNotFound,
		dErrors.CodeTimeout:                 http.StatusGatewayTimeout,
		dErrors.CodeUnauthorizedFieldAgent:  http.StatusForbidden,
		dErrors.CodePlatformPaused:          http.StatusForbidden,
		dErrors.CodeAlreadyVerified:         http.StatusConflict,
		dErrors.CodeDistributionNotExpired:  http.StatusConflict,
		dErrors.CodeTimeLockNotExpired:      http.StatusLocked,
		dErrors.CodeIneligibleBeneficiary:   http.StatusUnprocessableEntity,
		dErrors.CodeInsufficientPoolFunds:   http.StatusUnprocessableEntity,
		dErrors.CodeStringTooLong:           http.StatusBadRequest,
		dErrors.CodeInvalidDistributionType: http.StatusBadRequest,
		dErrors.CodeInvariantViolation:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}

type sampleRequest struct {
	Name string `json:"name"`
}

func (r *sampleRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"relief"}`))
		req, ok := DecodeAndPrepare[sampleRequest](w, r, logger, r.Context(), "req-1")
		if !ok || req.Name != "relief" {
			t.Fatalf("expected decoded request, got ok=%v req=%+v", ok, req)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
		if _, ok := DecodeAndPrepare[sampleRequest](w, r, logger, r.Context(), "req-1"); ok {
			t.Fatal("expected decode failure")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		if _, ok := DecodeAndPrepare[sampleRequest](w, r, logger, r.Context(), "req-1"); ok {
			t.Fatal("expected validation failure")
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation_error" {
			t.Fatalf("expected validation_error, got %q", body["error"])
		}
	})
}
