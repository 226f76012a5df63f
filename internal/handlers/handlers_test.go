package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/r-ms/detect-spam/internal/cache"
	"github.com/r-ms/detect-spam/internal/classifier"
)

type fakeChecker struct {
	res  classifier.Result
	err  error
	seen []string
}

func (f *fakeChecker) Check(_ context.Context, text string) (classifier.Result, error) {
	f.seen = append(f.seen, text)
	return f.res, f.err
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("disk on fire")

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBroken }
func (brokenStore) Set(context.Context, string, []byte) error         { return errBroken }
func (brokenStore) Clear(context.Context) error                       { return errBroken }
func (brokenStore) Len(context.Context) (int, error)                  { return 0, errBroken }
func (brokenStore) Location() string                                  { return "broken" }
func (brokenStore) Close() error                                      { return nil }

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestCheckSpam_OK(t *testing.T) {
	checker := &fakeChecker{res: classifier.Result{IsSpam: true, Reason: "казино", Cached: true}}
	h := NewSpamHandler(checker)

	req := httptest.NewRequest(http.MethodPost, "/check_spam", strings.NewReader(`{"text":"играй в казино"}`))
	rec := httptest.NewRecorder()
	h.CheckSpam(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var got classifier.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != checker.res {
		t.Fatalf("expected %+v, got %+v", checker.res, got)
	}
	if len(checker.seen) != 1 || checker.seen[0] != "играй в казино" {
		t.Fatalf("unexpected checker input: %v", checker.seen)
	}
}

func TestCheckSpam_EmptyTextIsValid(t *testing.T) {
	checker := &fakeChecker{}
	h := NewSpamHandler(checker)

	rec := httptest.NewRecorder()
	h.CheckSpam(rec, httptest.NewRequest(http.MethodPost, "/check_spam", strings.NewReader(`{"text":""}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(checker.seen) != 1 || checker.seen[0] != "" {
		t.Fatalf("expected empty text to reach the checker")
	}
}

func TestCheckSpam_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		checkerErr error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "invalid json",
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid JSON body",
		},
		{
			name:       "missing text",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Field 'text' is required",
		},
		{
			name:       "backend failure",
			body:       `{"text":"hi"}`,
			checkerErr: errors.New("generate: backend unreachable"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Error processing request: generate: backend unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSpamHandler(&fakeChecker{err: tt.checkerErr})

			rec := httptest.NewRecorder()
			h.CheckSpam(rec, httptest.NewRequest(http.MethodPost, "/check_spam", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := decodeDetail(t, rec); got != tt.wantDetail {
				t.Fatalf("expected detail %q, got %q", tt.wantDetail, got)
			}
		})
	}
}

func TestCacheClear_StoreFailure(t *testing.T) {
	h := NewCacheHandler(cache.NewResultCache(brokenStore{}, cache.ResultCacheOptions{}))

	rec := httptest.NewRecorder()
	h.Clear(rec, httptest.NewRequest(http.MethodDelete, "/cache/clear", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decodeDetail(t, rec); !strings.HasPrefix(got, "Error clearing cache: ") {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestCacheStats_BrokenStoreStillAnswers(t *testing.T) {
	h := NewCacheHandler(cache.NewResultCache(brokenStore{}, cache.ResultCacheOptions{}))

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"size", "hits", "misses", "directory"} {
		if _, ok := stats[key]; !ok {
			t.Fatalf("missing %q in %v", key, stats)
		}
	}
	if stats["directory"] != "broken" {
		t.Fatalf("unexpected directory %v", stats["directory"])
	}
}

type plainGenerator struct{}

func (plainGenerator) Generate(context.Context, string) (string, error) { return "", nil }
func (plainGenerator) Name() string                                     { return "plain" }

func TestHealth_GeneratorWithoutPing(t *testing.T) {
	rc := cache.NewResultCache(nil, cache.ResultCacheOptions{})
	h := NewHealthHandler(HealthInfo{Model: "m", Host: "h"}, plainGenerator{}, rc)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var got healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ok" || got.BackendStatus != BackendStatusUnknown || got.Backend != "plain" {
		t.Fatalf("unexpected health: %+v", got)
	}
	if got.CacheInfo.Directory != "disabled" || got.CacheInfo.InMemory {
		t.Fatalf("unexpected cache info: %+v", got.CacheInfo)
	}
}

func TestHealth_CacheStatus(t *testing.T) {
	unreachable, backend := cache.OpenStore(cache.Config{
		Enabled:   true,
		Backend:   cache.BackendRedis,
		RedisAddr: "127.0.0.1:1",
	}, nil)
	disabled, disabledBackend := cache.OpenStore(cache.Config{Enabled: false, Backend: cache.BackendSQLite}, nil)
	memory, memoryBackend := cache.OpenStore(cache.Config{Enabled: true, Backend: cache.BackendMemory}, nil)

	tests := []struct {
		name        string
		store       cache.Store
		backend     string
		wantBackend string
		wantStatus  string
	}{
		{name: "unavailable", store: unreachable, backend: backend, wantBackend: cache.BackendNone, wantStatus: BackendStatusError},
		{name: "disabled", store: disabled, backend: disabledBackend, wantBackend: cache.BackendDisabled, wantStatus: CacheStatusDisabled},
		{name: "memory", store: memory, backend: memoryBackend, wantBackend: cache.BackendMemory, wantStatus: BackendStatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := cache.NewResultCache(tt.store, cache.ResultCacheOptions{Backend: tt.backend})
			h := NewHealthHandler(HealthInfo{Model: "m", Host: "h"}, plainGenerator{}, rc)

			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			var got healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rec.Code != http.StatusOK || got.Status != "ok" {
				t.Fatalf("health must stay 200/ok, got %d %+v", rec.Code, got)
			}
			if got.CacheInfo.Backend != tt.wantBackend || got.CacheInfo.Status != tt.wantStatus {
				t.Fatalf("unexpected cache info: %+v", got.CacheInfo)
			}
		})
	}
}
