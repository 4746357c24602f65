// Package testutil provides common test utilities for handler and service tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sahara/pkg/domain-errors"
)

// NewJSONRequest creates an HTTP request with a JSON body.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body), "failed to marshal request body")
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// DecodeResponse unmarshals the response body into T.
func DecodeResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "failed to unmarshal response: %s", rr.Body.String())
	return out
}

// AssertStatusAndError asserts the status and the "error" code of an error response.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, status int, code dErrors.Code) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "unexpected status code: %s", rr.Body.String())
	body := DecodeResponse[map[string]string](t, rr)
	assert.Equal(t, string(code), body["error"], "unexpected error code")
}
