package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var (
	_ HTTPClient = (*StandardClient)(nil)
	_ HTTPClient = (*MockHTTPClient)(nil)
)

func TestStandardClientWraps(t *testing.T) {
	custom := &http.Client{}
	if c := NewStandardClient(custom); c.Client != custom {
		t.Error("custom client not wrapped")
	}
	if c := NewStandardClient(nil); c.Client != http.DefaultClient {
		t.Error("nil should fall back to http.DefaultClient")
	}
}

func TestStandardClientAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	resp, err := NewStandardClient(nil).Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "pong" {
		t.Errorf("body = %q, want pong", body)
	}
}

func TestMockClientQueue(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "first").
		AddResponse(http.StatusNotFound, "second")

	// Get and Post drain the same queue.
	requests := []func() (*http.Response, error){
		func() (*http.Response, error) { return mock.Get("http://example.test/") },
		func() (*http.Response, error) {
			return mock.Post("http://example.test/", "text/plain", strings.NewReader("x"))
		},
		// Past the queue, the mock answers 200 with an empty body.
		func() (*http.Response, error) { return mock.Get("http://example.test/") },
	}
	want := []struct {
		status int
		body   string
	}{
		{http.StatusOK, "first"},
		{http.StatusNotFound, "second"},
		{http.StatusOK, ""},
	}

	for i, issue := range requests {
		resp, err := issue()
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != want[i].status {
			t.Errorf("request %d: status = %d, want %d", i, resp.StatusCode, want[i].status)
		}
		if string(body) != want[i].body {
			t.Errorf("request %d: body = %q, want %q", i, body, want[i].body)
		}
	}
}

func TestMockClientTransportError(t *testing.T) {
	wantErr := errors.New("connection refused")
	mock := NewMockHTTPClient()
	mock.AddErrorResponse(wantErr)

	if _, err := mock.Get("http://example.test/"); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestMockClientRecordsRequests(t *testing.T) {
	mock := NewMockHTTPClient()

	if _, err := mock.Post("http://example.test/command", "application/x-www-form-urlencoded",
		strings.NewReader("opcode=0x42")); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if n := mock.RequestCount(); n != 1 {
		t.Fatalf("RequestCount = %d, want 1", n)
	}

	req := mock.GetRequest(0)
	if req == nil {
		t.Fatal("GetRequest(0) = nil")
	}
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.URL.String() != "http://example.test/command" {
		t.Errorf("url = %s", req.URL)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("content-type = %q", ct)
	}
	body, _ := io.ReadAll(req.Body)
	if string(body) != "opcode=0x42" {
		t.Errorf("body = %q", body)
	}

	if req := mock.GetRequest(7); req != nil {
		t.Errorf("GetRequest out of range = %v, want nil", req)
	}
}
