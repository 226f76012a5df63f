package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"github.com/r-ms/detect-spam/internal/cache"
	"github.com/r-ms/detect-spam/internal/classifier"
	"github.com/r-ms/detect-spam/internal/handlers"
	"github.com/r-ms/detect-spam/internal/llm"
	"github.com/r-ms/detect-spam/internal/verdict"
)

type fakeGenerator struct {
	reply string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, _ string) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, gen *fakeGenerator, opts Options) *httptest.Server {
	t.Helper()

	rc := cache.NewResultCache(cache.NewMemoryStore(0, 0), cache.ResultCacheOptions{Backend: cache.BackendMemory})
	svc := classifier.NewService(gen, rc, verdict.NewNormalizer(verdict.FormatTwoLine), nil, classifier.Options{})

	r := chi.NewRouter()
	SetupRouter(r, zaptest.NewLogger(t), opts, Handlers{
		Spam:   handlers.NewSpamHandler(svc),
		Health: handlers.NewHealthHandler(handlers.HealthInfo{Model: "llama3", Host: "http://ollama:11434"}, gen, rc),
		Cache:  handlers.NewCacheHandler(rc),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	return resp.StatusCode
}

type checkResponse struct {
	IsSpam bool   `json:"is_spam"`
	Reason string `json:"reason"`
	Cached bool   `json:"cached"`
	Detail string `json:"detail"`
}

type statsResponse struct {
	Size      int    `json:"size"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Directory string `json:"directory"`
}

func TestCheckSpamFlow(t *testing.T) {
	gen := &fakeGenerator{reply: "true\nB ET WIN. РУ"}
	srv := newTestServer(t, gen, Options{RequestTimeout: time.Second, MaxBodyBytes: 1024})

	var first checkResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/check_spam", `{"text":"B ET WIN. РУ бонус"}`, &first); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !first.IsSpam || first.Reason != "B ET WIN. РУ" || first.Cached {
		t.Fatalf("unexpected first response: %+v", first)
	}

	var second checkResponse
	doJSON(t, http.MethodPost, srv.URL+"/check_spam", `{"text":"B ET WIN. РУ бонус"}`, &second)
	if !second.Cached || second.IsSpam != first.IsSpam || second.Reason != first.Reason {
		t.Fatalf("unexpected second response: %+v", second)
	}

	var stats statsResponse
	doJSON(t, http.MethodGet, srv.URL+"/cache/stats", "", &stats)
	if stats.Size != 1 || stats.Hits != 1 || stats.Misses != 1 || stats.Directory != "memory" {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	var cleared struct {
		Status string `json:"status"`
		Size   int    `json:"size"`
	}
	if code := doJSON(t, http.MethodDelete, srv.URL+"/cache/clear", "", &cleared); code != http.StatusOK {
		t.Fatalf("expected 200 from clear, got %d", code)
	}
	if cleared.Status != "Cache cleared" || cleared.Size != 0 {
		t.Fatalf("unexpected clear response: %+v", cleared)
	}

	var third checkResponse
	doJSON(t, http.MethodPost, srv.URL+"/check_spam", `{"text":"B ET WIN. РУ бонус"}`, &third)
	if third.Cached {
		t.Fatalf("expected uncached response after clear")
	}
	if gen.calls != 2 {
		t.Fatalf("expected 2 backend calls, got %d", gen.calls)
	}
}

func TestCheckSpamMalformedOutputStill200(t *testing.T) {
	gen := &fakeGenerator{reply: "certainly true, this looks bad"}
	srv := newTestServer(t, gen, Options{})

	var resp checkResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/check_spam", `{"text":"x"}`, &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !resp.IsSpam || resp.Reason != verdict.FallbackReason {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCheckSpamBackendError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: dial tcp: connection refused", llm.ErrBackendUnreachable)}
	srv := newTestServer(t, gen, Options{})

	var resp checkResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/check_spam", `{"text":"x"}`, &resp); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if !strings.HasPrefix(resp.Detail, "Error processing request: ") || !strings.Contains(resp.Detail, "connection refused") {
		t.Fatalf("unexpected detail: %q", resp.Detail)
	}

	var stats statsResponse
	doJSON(t, http.MethodGet, srv.URL+"/cache/stats", "", &stats)
	if stats.Size != 0 {
		t.Fatalf("failed request must not be cached")
	}
}

func TestCheckSpamBadRequests(t *testing.T) {
	gen := &fakeGenerator{reply: "false\nfalse"}
	srv := newTestServer(t, gen, Options{MaxBodyBytes: 64})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not json", body: "text=hello", want: http.StatusBadRequest},
		{name: "missing text", body: `{"message":"hi"}`, want: http.StatusBadRequest},
		{name: "wrong type", body: `{"text":42}`, want: http.StatusBadRequest},
		{name: "too large", body: `{"text":"` + strings.Repeat("a", 100) + `"}`, want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp checkResponse
			if code := doJSON(t, http.MethodPost, srv.URL+"/check_spam", tt.body, &resp); code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, code)
			}
			if resp.Detail == "" {
				t.Fatalf("expected a detail message")
			}
		})
	}

	if gen.calls != 0 {
		t.Fatalf("bad requests must not reach the backend")
	}
}

func TestCheckSpamTimeout(t *testing.T) {
	gen := &fakeGenerator{reply: "true\nslow", delay: time.Second}
	srv := newTestServer(t, gen, Options{RequestTimeout: 30 * time.Millisecond})

	if code := doJSON(t, http.MethodPost, srv.URL+"/check_spam", `{"text":"x"}`, nil); code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "reachable", err: nil, want: handlers.BackendStatusOK},
		{name: "bad status", err: &llm.StatusError{StatusCode: 502}, want: handlers.BackendStatusUnknown},
		{name: "unreachable", err: errors.New("connection refused"), want: handlers.BackendStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{err: tt.err}
			srv := newTestServer(t, gen, Options{})

			var resp struct {
				Status        string `json:"status"`
				Model         string `json:"model"`
				Backend       string `json:"backend"`
				BackendHost   string `json:"backend_host"`
				BackendStatus string `json:"backend_status"`
				CacheInfo     struct {
					Size      int    `json:"size"`
					Directory string `json:"directory"`
					InMemory  bool   `json:"in_memory"`
				} `json:"cache_info"`
			}
			if code := doJSON(t, http.MethodGet, srv.URL+"/health", "", &resp); code != http.StatusOK {
				t.Fatalf("expected 200, got %d", code)
			}
			if resp.Status != "ok" || resp.Model != "llama3" || resp.Backend != "fake" || resp.BackendHost != "http://ollama:11434" {
				t.Fatalf("unexpected health: %+v", resp)
			}
			if resp.BackendStatus != tt.want {
				t.Fatalf("expected backend_status %q, got %q", tt.want, resp.BackendStatus)
			}
			if !resp.CacheInfo.InMemory || resp.CacheInfo.Directory != "memory" {
				t.Fatalf("unexpected cache info: %+v", resp.CacheInfo)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{}, Options{})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
