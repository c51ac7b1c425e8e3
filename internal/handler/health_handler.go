package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/domain/repository"
)

// HealthHandler сообщает о доступности базы и хранилища кодов
type HealthHandler struct {
	db      repository.Pinger
	store   repository.Pinger
	storeID string
	log     *zap.Logger
}

// NewHealthHandler создает обработчик /healthz. storeID - "redis" или "memory".
func NewHealthHandler(db, store repository.Pinger, storeID string, log *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, store: store, storeID: storeID, log: log.Named("health")}
}

// Health проверяет зависимости с коротким таймаутом.
// GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("Database health check failed", zap.Error(err))
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "up"
	}

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Store health check failed", zap.String("store", h.storeID), zap.Error(err))
		checks["store"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["store"] = "up"
	}

	result := "ok"
	if status != http.StatusOK {
		result = "degraded"
	}
	c.JSON(status, gin.H{"status": result, "checks": checks, "store_backend": h.storeID})
}
