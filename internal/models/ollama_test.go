package models

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func roundTrip(t *testing.T, url string) (*http.Response, error) {
	t.Helper()
	transport := &ollamaTransport{inner: http.DefaultTransport, provider: "ollama"}
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return transport.RoundTrip(req)
}

func serve(contentType string, status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

func TestOllamaTransport_PassesJSON(t *testing.T) {
	for _, ct := range []string{"application/json", "application/x-ndjson"} {
		srv := serve(ct, http.StatusOK, `{"done":true}`)
		resp, err := roundTrip(t, srv.URL)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", ct, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		srv.Close()
		if string(body) != `{"done":true}` {
			t.Errorf("%s: body = %q", ct, body)
		}
	}
}

func TestOllamaTransport_Unavailable(t *testing.T) {
	cases := []struct {
		name   string
		ct     string
		status int
		body   string
	}{
		{"plain text", "text/plain", http.StatusOK, "no available server"},
		{"server error", "application/json", http.StatusServiceUnavailable, "service unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(tc.ct, tc.status, tc.body)
			defer srv.Close()

			_, err := roundTrip(t, srv.URL)
			var unavail *ErrModelUnavailable
			if !errors.As(err, &unavail) {
				t.Fatalf("expected ErrModelUnavailable, got %T: %v", err, err)
			}
			if !strings.Contains(unavail.Body, tc.body) {
				t.Errorf("body: got %q, want %q", unavail.Body, tc.body)
			}
			if !errors.Is(err, ErrUpstream) {
				t.Error("ErrModelUnavailable should match ErrUpstream")
			}
		})
	}
}

func TestOllamaTransport_ConnectionError(t *testing.T) {
	_, err := roundTrip(t, "http://127.0.0.1:1")
	var unavail *ErrModelUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrModelUnavailable, got %T: %v", err, err)
	}
	if unavail.Cause == nil {
		t.Error("expected non-nil Cause for connection error")
	}
}
