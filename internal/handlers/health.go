package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/r-ms/detect-spam/internal/cache"
	"github.com/r-ms/detect-spam/internal/llm"
	"github.com/r-ms/detect-spam/pkg/logging/logging"

	"go.uber.org/zap"
)

const (
	BackendStatusOK      = "ok"
	BackendStatusError   = "error"
	BackendStatusUnknown = "unknown"

	CacheStatusDisabled = "disabled"
)

type HealthInfo struct {
	Model string
	Host  string
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	info      HealthInfo
	generator llm.Generator
	cache     *cache.ResultCache
}

func NewHealthHandler(info HealthInfo, generator llm.Generator, c *cache.ResultCache) *HealthHandler {
	return &HealthHandler{info: info, generator: generator, cache: c}
}

type cacheInfo struct {
	Size      int    `json:"size"`
	Directory string `json:"directory"`
	Backend   string `json:"backend"`
	InMemory  bool   `json:"in_memory"`
	Status    string `json:"status"`
}

type healthResponse struct {
	Status        string    `json:"status"`
	Model         string    `json:"model"`
	Backend       string    `json:"backend"`
	BackendHost   string    `json:"backend_host"`
	BackendStatus string    `json:"backend_status"`
	CacheInfo     cacheInfo `json:"cache_info"`
}

// Health always answers 200; backend trouble shows up in backend_status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := h.cache.Stats(ctx)

	status := BackendStatusUnknown
	if p, ok := llm.AsPinger(h.generator); ok {
		err := p.Ping(ctx)
		var serr *llm.StatusError
		switch {
		case err == nil:
			status = BackendStatusOK
		case errors.As(err, &serr):
			status = BackendStatusUnknown
		default:
			status = BackendStatusError
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Model:         h.info.Model,
		Backend:       h.generator.Name(),
		BackendHost:   h.info.Host,
		BackendStatus: status,
		CacheInfo: cacheInfo{
			Size:      stats.Size,
			Directory: stats.Directory,
			Backend:   stats.Backend,
			InMemory:  h.cache.InMemory(),
			Status:    h.cacheStatus(ctx, stats.Backend),
		},
	})
}

// cacheStatus is "ok" when the store answers, "error" when it does not
// (including a backend that failed to open) and "disabled" when caching is off.
func (h *HealthHandler) cacheStatus(ctx context.Context, backend string) string {
	if backend == cache.BackendDisabled {
		return CacheStatusDisabled
	}
	if err := h.cache.Ping(ctx); err != nil {
		logging.L(ctx).Warn("cache store unreachable", zap.String("cache_backend", backend), zap.Error(err))
		return BackendStatusError
	}
	return BackendStatusOK
}
