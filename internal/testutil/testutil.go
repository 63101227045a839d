// Package testutil carries the handler-test helpers the API tests share:
// one-call request dispatch, status assertions, and response decoding.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Request serves one bodyless request against h and returns the recorded
// response. Bare handler methods convert through http.HandlerFunc.
func Request(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

// Get serves one GET request against h.
func Get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	return Request(t, h, http.MethodGet, path)
}

// AssertStatus fails the test when the recorded status differs from want.
// A mismatch shows the body too, which usually carries the handler's error
// message.
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}

// AssertNoError stops the test on an unexpected error.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// DecodeJSON unmarshals a recorded JSON response body into v, stopping the
// test when the body does not parse. v must be a pointer.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
}
