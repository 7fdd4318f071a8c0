package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/karmasystem/auth-service/internal/constants"
	"github.com/karmasystem/auth-service/pkg/health"
	"github.com/karmasystem/auth-service/pkg/logger"
	"github.com/karmasystem/auth-service/pkg/redis"
)

type HealthHandler struct {
	db          *gorm.DB
	redisClient *redis.Client
	monitor     *health.Monitor
}

type HealthCheckResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, monitor *health.Monitor) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
		monitor:     monitor,
	}
}

// HealthCheck reports database and revocation store connectivity. The
// revocation store counts against overall health: with it down every token
// fails closed, so the instance cannot serve authenticated traffic.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthCheckResponse{
		Status:    "healthy",
		Version:   constants.AppVersion,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]HealthCheck),
	}

	dbStatus := h.check(ctx, "database", h.checkDatabase)
	response.Checks["database"] = dbStatus
	if dbStatus.Status != "healthy" {
		response.Status = "unhealthy"
	}

	redisStatus := h.check(ctx, "redis", h.checkRedis)
	response.Checks["redis"] = redisStatus
	if redisStatus.Status != "healthy" {
		response.Status = "unhealthy"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	logger.GetLogger().Debug("Health check performed",
		zap.String("overall_status", response.Status),
		zap.Int("status_code", statusCode),
	)

	c.JSON(statusCode, response)
}

// check prefers the background monitor's cached result and falls back to a
// live probe before the first monitor pass lands
func (h *HealthHandler) check(ctx context.Context, name string, live func(context.Context) HealthCheck) HealthCheck {
	if h.monitor != nil {
		if result, ok := h.monitor.GetResult(name); ok {
			status := HealthCheck{
				Status:    "healthy",
				LatencyMS: float64(result.Latency.Microseconds()) / 1000,
			}
			if result.Status != health.StatusHealthy {
				status.Status = "unhealthy"
				if result.LastError != nil {
					status.Message = result.LastError.Error()
				}
			}
			return status
		}
	}
	return live(ctx)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheck {
	if h.db == nil {
		return HealthCheck{Status: "unhealthy", Message: "database not configured"}
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		return HealthCheck{Status: "unhealthy", Message: err.Error()}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return HealthCheck{Status: "unhealthy", Message: err.Error()}
	}

	return HealthCheck{Status: "healthy"}
}

func (h *HealthHandler) checkRedis(ctx context.Context) HealthCheck {
	if h.redisClient == nil {
		return HealthCheck{Status: "unhealthy", Message: "redis not configured"}
	}

	if err := h.redisClient.Ping(ctx); err != nil {
		return HealthCheck{Status: "unhealthy", Message: err.Error()}
	}

	return HealthCheck{Status: "healthy"}
}
