package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/simmer-app/backend/internal/database"
	"github.com/simmer-app/backend/internal/service"
)

// HealthHandler reports the reachability of the service's collaborators.
type HealthHandler struct {
	db         *database.DB
	redis      *redis.Client
	llmService *service.LLMService
}

// NewHealthHandler creates a new HealthHandler. Any collaborator may be nil
// and is then skipped.
func NewHealthHandler(db *database.DB, redisClient *redis.Client, llmService *service.LLMService) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, llmService: llmService}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.llmService != nil {
		health, err := h.llmService.HealthCheck(ctx)
		if err != nil || !health.OK {
			checks["llm"] = "unreachable"
		} else {
			checks["llm"] = gin.H{"ok": true, "latency_ms": health.LatencyMs}
		}
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}
