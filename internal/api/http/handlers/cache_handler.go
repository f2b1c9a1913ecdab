package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/btangonan/calm-productivity-app-sub002/internal/api/dto"
	"github.com/btangonan/calm-productivity-app-sub002/internal/auth"
	"github.com/btangonan/calm-productivity-app-sub002/internal/service"
	apperrors "github.com/btangonan/calm-productivity-app-sub002/pkg/util"
)

// CacheHandler exposes the cache invalidation endpoint.
type CacheHandler struct {
	sessions *service.SessionService
}

// NewCacheHandler constructs handler.
func NewCacheHandler(sessions *service.SessionService) *CacheHandler {
	return &CacheHandler{sessions: sessions}
}

// Invalidate handles POST /cache/invalidate. Write operations call this so
// subsequent reads bypass stale cached data for the caller's keys.
func (h *CacheHandler) Invalidate(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing identity")
	}

	var req dto.InvalidateCacheRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("INVALID_PAYLOAD", "invalid payload")
	}

	result, err := h.sessions.InvalidateCache(c.UserContext(), identity, req.CacheKeys)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "cache invalidated",
		"data": dto.InvalidationData{
			InvalidatedKeys: result.InvalidatedKeys,
			Timestamp:       result.Timestamp,
			UserPrefix:      result.UserPrefix,
		},
	})
}
