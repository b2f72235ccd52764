package handler

import (
	"context"
	"net/http"

	"github.com/robalyx/roprofile/internal/profile"
	"github.com/robalyx/roprofile/internal/rest/respond"
	restTypes "github.com/robalyx/roprofile/internal/rest/types"
	"github.com/robalyx/roprofile/internal/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// CacheAdmin exposes cache maintenance operations.
type CacheAdmin interface {
	Stats(ctx context.Context) (profile.Stats, error)
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) (int, error)
	Invalidate(ctx context.Context, username string) (bool, error)
}

// CacheHandler handles cache administration endpoints.
type CacheHandler struct {
	admin  CacheAdmin
	logger *zap.Logger
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(admin CacheAdmin, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{
		admin:  admin,
		logger: logger.Named("cache_handler"),
	}
}

// GetStats reports cache and queue counters.
func (h *CacheHandler) GetStats(w http.ResponseWriter, req bunrouter.Request) error {
	stats, err := h.admin.Stats(req.Context())
	if err != nil {
		return h.fail(w, "Failed to get cache stats", err)
	}

	return respond.JSON(w, http.StatusOK, restTypes.StatsResponse{Success: true, Data: stats})
}

// GetKeys lists cached keys.
func (h *CacheHandler) GetKeys(w http.ResponseWriter, req bunrouter.Request) error {
	keys, err := h.admin.Keys(req.Context())
	if err != nil {
		return h.fail(w, "Failed to list cache keys", err)
	}

	return respond.JSON(w, http.StatusOK, restTypes.KeysResponse{Success: true, Count: len(keys), Keys: keys})
}

// Clear removes every cached profile.
func (h *CacheHandler) Clear(w http.ResponseWriter, req bunrouter.Request) error {
	removed, err := h.admin.Clear(req.Context())
	if err != nil {
		return h.fail(w, "Failed to clear cache", err)
	}

	h.logger.Info("Cleared profile cache", zap.Int("removed", removed))

	return respond.JSON(w, http.StatusOK, restTypes.ClearResponse{Success: true, Removed: removed})
}

// Invalidate removes the cached profile for the :username path parameter.
func (h *CacheHandler) Invalidate(w http.ResponseWriter, req bunrouter.Request) error {
	query, err := types.NewQuery(req.Param("username"))
	if err != nil {
		return respond.Error(w, err)
	}

	removed, err := h.admin.Invalidate(req.Context(), query.Username())
	if err != nil {
		return h.fail(w, "Failed to invalidate cache entry", err)
	}

	return respond.JSON(w, http.StatusOK, restTypes.InvalidateResponse{
		Success: true,
		Key:     query.Key(),
		Removed: removed,
	})
}

func (h *CacheHandler) fail(w http.ResponseWriter, message string, err error) error {
	h.logger.Error(message, zap.Error(err))
	return respond.Error(w, types.NewError(types.KindInternal, message, err))
}
