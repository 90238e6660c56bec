package producer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"
)

func newJSONServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/weather":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"current":{"temp":18.5,"sky":"cloudy","windy":false},"alerts":["fog"]}`))
		case "/text":
			_, _ = w.Write([]byte("  up 3 days  \nsecond line\n"))
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPClient_Produce(t *testing.T) {
	ts := newJSONServer(t)
	c := NewHTTPClient()
	defer c.Close()

	tests := []struct {
		name    string
		params  []string
		want    string
		wantErr bool
	}{
		{"first line", []string{ts.URL + "/text"}, "up 3 days", false},
		{"json string", []string{ts.URL + "/weather", "current.sky"}, "cloudy", false},
		{"json number", []string{ts.URL + "/weather", "current.temp"}, "18.5", false},
		{"json bool", []string{ts.URL + "/weather", "current.windy"}, "false", false},
		{"json array index", []string{ts.URL + "/weather", "alerts.0"}, "fog", false},
		{"missing field", []string{ts.URL + "/weather", "current.humidity"}, "", true},
		{"object leaf", []string{ts.URL + "/weather", "current"}, "", true},
		{"not json", []string{ts.URL + "/text", "a.b"}, "", true},
		{"server error", []string{ts.URL + "/broken"}, "", true},
		{"no url", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Produce(context.Background(), tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Produce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Produce() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_NoURLIsNoValue(t *testing.T) {
	_, err := NewHTTPClient().Produce(context.Background(), []string{""})
	if !errors.Is(err, ErrNoValue) {
		t.Errorf("Produce() error = %v, want ErrNoValue", err)
	}
}

func TestHTTPClient_HonorsDeadline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewHTTPClient().Produce(ctx, []string{ts.URL})
	if err == nil || !strings.Contains(err.Error(), "request failed") {
		t.Errorf("Produce() error = %v, want request failure", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Produce() ignored the context deadline")
	}
}

// TestHTTPClient_ConnectionReuse verifies that sequential polls of the same
// host reuse the pooled connection.
func TestHTTPClient_ConnectionReuse(t *testing.T) {
	ts := newJSONServer(t)
	c := NewHTTPClient()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		if _, err := c.Produce(ctx, []string{ts.URL + "/text"}); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	// allow some tolerance for the first connection
	if expectedMinReuse := numRequests - 2; reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

func TestHTTPClient_CloseIdempotent(t *testing.T) {
	c := NewHTTPClient()
	c.Close()
	c.Close()

	var nilClient *HTTPClient
	nilClient.Close()
}
