package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"sahara/pkg/requestcontext"
)

type stubValidator struct {
	claims *ActorClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*ActorClaims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	actor := uuid.NewString()

	var seenActor string
	var seenRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenActor = requestcontext.ActorID(r.Context()).String()
		seenRole = requestcontext.ActorRole(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireAuth(stubValidator{}, logger)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad")
		RequireAuth(stubValidator{err: errors.New("bad")}, logger)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("non uuid actor", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ok")
		RequireAuth(stubValidator{claims: &ActorClaims{ActorID: "alice"}}, logger)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token sets actor", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ok")
		RequireAuth(stubValidator{claims: &ActorClaims{ActorID: actor, Role: "admin"}}, logger)(next).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, actor, seenActor)
		assert.Equal(t, "admin", seenRole)
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
