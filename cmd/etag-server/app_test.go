package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/always-cache/etag"
	"github.com/always-cache/etag/content"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, streaming bool) http.Handler {
	t.Helper()
	store, err := content.NewSQLiteStore(filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	logger := zerolog.Nop()
	registry := prometheus.NewRegistry()
	mw := etag.New(etag.Config{
		Streaming: streaming,
		Logger:    &logger,
		Metrics:   etag.NewMetrics("test", registry),
	})
	return newRouter(&app{store: store, log: logger}, mw, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

func do(h http.Handler, method, target, ifNoneMatch string) (*http.Response, string) {
	req := httptest.NewRequest(method, target, nil)
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	res := rr.Result()
	body, _ := io.ReadAll(res.Body)
	return res, string(body)
}

func TestHelloETagLifecycle(t *testing.T) {
	for _, streaming := range []bool{false, true} {
		t.Run(fmt.Sprintf("streaming=%v", streaming), func(t *testing.T) {
			h := newTestServer(t, streaming)

			res, body := do(h, "GET", "/hello", "")
			if res.StatusCode != http.StatusOK || body != "Hello, world!" {
				t.Fatalf("Got %d %q", res.StatusCode, body)
			}
			if res.Header.Get("ETag") != "" {
				t.Fatalf("ETag set for small body: %s", res.Header.Get("ETag"))
			}

			name := strings.Repeat("test", 20)
			if res, _ := do(h, "POST", "/rename?new_name="+name, ""); res.StatusCode != http.StatusOK {
				t.Fatalf("Rename status %d", res.StatusCode)
			}

			res, body = do(h, "GET", "/hello", "")
			etag := res.Header.Get("ETag")
			if res.StatusCode != http.StatusOK || body != "Hello, "+name+"!" || etag == "" {
				t.Fatalf("Got %d %q with ETag %q", res.StatusCode, body, etag)
			}
			if len(etag) != 24 {
				t.Fatalf("ETag %s is not a quoted 22 character token", etag)
			}

			for _, inm := range []string{etag, "W/" + etag} {
				res, body = do(h, "GET", "/hello", inm)
				if res.StatusCode != http.StatusNotModified || body != "" {
					t.Fatalf("If-None-Match %s: got %d %q", inm, res.StatusCode, body)
				}
				if res.Header.Get("ETag") != etag {
					t.Fatalf("ETag is %s, expected %s", res.Header.Get("ETag"), etag)
				}
				if res.Header.Get("Content-Length") != "" {
					t.Fatalf("Content-Length set on 304: %s", res.Header.Get("Content-Length"))
				}
			}

			name = strings.Repeat("test", 21)
			do(h, "POST", "/rename?new_name="+name, "")
			res, body = do(h, "GET", "/hello", etag)
			if res.StatusCode != http.StatusOK || body != "Hello, "+name+"!" {
				t.Fatalf("Stale ETag: got %d %q", res.StatusCode, body)
			}
			if etag2 := res.Header.Get("ETag"); etag2 == "" || etag2 == etag {
				t.Fatalf("ETag not updated: %s", etag2)
			}

			res, body = do(h, "GET", "/error", res.Header.Get("ETag"))
			if res.StatusCode != http.StatusInternalServerError || body != "Hello, "+name+"!" {
				t.Fatalf("Error: got %d %q", res.StatusCode, body)
			}
			if res.Header.Get("ETag") != "" {
				t.Fatalf("ETag set on error response")
			}
		})
	}
}

func TestStreamingHello(t *testing.T) {
	tests := []struct {
		streaming bool
		wantETag  bool
	}{
		{streaming: false, wantETag: false},
		{streaming: true, wantETag: true},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("streaming=%v", test.streaming), func(t *testing.T) {
			h := newTestServer(t, test.streaming)
			name := strings.Repeat("test", 21)
			do(h, "POST", "/rename?new_name="+name, "")

			res, body := do(h, "GET", "/streaming-hello", "")
			if res.StatusCode != http.StatusOK || body != "Hello, "+name+"!" {
				t.Fatalf("Got %d %q", res.StatusCode, body)
			}
			etag := res.Header.Get("ETag")
			if (etag != "") != test.wantETag {
				t.Fatalf("ETag is %q", etag)
			}
			if !test.wantETag {
				return
			}

			// chunked and sized responses of the same body share the tag
			res, _ = do(h, "GET", "/hello", etag)
			if res.StatusCode != http.StatusNotModified {
				t.Fatalf("Sized response with streamed ETag: got %d", res.StatusCode)
			}
		})
	}
}

func TestRenameRequiresName(t *testing.T) {
	h := newTestServer(t, false)
	if res, _ := do(h, "POST", "/rename", ""); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("Status is %d", res.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, false)
	do(h, "POST", "/rename?new_name="+strings.Repeat("test", 20), "")
	do(h, "GET", "/hello", "")

	res, body := do(h, "GET", "/metrics", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("Status is %d", res.StatusCode)
	}
	if !strings.Contains(body, `test_etag_responses_total{result="miss"} 1`) {
		t.Fatalf("Metrics missing: %s", body)
	}
	if res.Header.Get("ETag") != "" {
		t.Fatalf("ETag set on metrics")
	}
}

func TestGetConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "port: 9090\nstreaming: true\nlogFile: etag.log\n"
	if err := os.WriteFile(filename, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := getConfig(filename)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if config.Port != 9090 || !config.Streaming || config.LogFile != "etag.log" {
		t.Fatalf("Config is %+v", config)
	}
	// defaults are kept for missing keys
	if config.MinimumSize != etag.DefaultMinimumSize || config.DB != "memory" {
		t.Fatalf("Config is %+v", config)
	}
}

func TestGetConfigMissingFile(t *testing.T) {
	if _, err := getConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error")
	}
}
