package handlers

import (
	"net/http"

	"github.com/r-ms/detect-spam/internal/cache"
	"github.com/r-ms/detect-spam/pkg/logging/logging"

	"go.uber.org/zap"
)

// CacheHandler serves the /cache endpoints.
type CacheHandler struct {
	cache *cache.ResultCache
}

func NewCacheHandler(c *cache.ResultCache) *CacheHandler {
	return &CacheHandler{cache: c}
}

type clearResponse struct {
	Status string `json:"status"`
	Size   int    `json:"size"`
}

// Stats handles GET /cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats(r.Context()))
}

// Clear handles DELETE /cache/clear.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	size, err := h.cache.Clear(ctx)
	if err != nil {
		logging.L(ctx).Error("cache clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error clearing cache: "+err.Error())
		return
	}

	logging.L(ctx).Info("cache cleared", zap.Int("size", size))
	writeJSON(w, http.StatusOK, clearResponse{Status: "Cache cleared", Size: size})
}
