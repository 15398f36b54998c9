package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/SergeiKhy/edushare/internal/metrics"
	"github.com/SergeiKhy/edushare/internal/middleware"
	"github.com/SergeiKhy/edushare/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger зависимость, доступность которой проверяет health check
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterDeps struct {
	ShareService service.ShareService
	Submissions  service.SubmissionProcessor
	RateLimiter  *middleware.RateLimiter
	OwnerAuth    gin.HandlerFunc
	Metrics      *metrics.Metrics
	// Checks именованные зависимости для /health (postgres, redis)
	Checks map[string]Pinger
	// CORSOrigins если пусто, CORS не включается
	CORSOrigins []string
	Logger      *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(middleware.CORS(deps.CORSOrigins))
	}

	// Логирование и метрики
	router.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	shareHandler := NewShareHandler(deps.ShareService, deps.Submissions, deps.Logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck(deps.Checks))

		// Публичные эндпоинты без аутентификации, с rate limiting по IP
		shared := v1.Group("/shared")
		if deps.RateLimiter != nil {
			shared.Use(deps.RateLimiter.Middleware())
		}
		shared.GET("/:locator", shareHandler.GetShared)
		shared.POST("/:locator/submit", shareHandler.SubmitShared)

		// Управление ссылками только для владельца
		owner := v1.Group("/share")
		if deps.OwnerAuth != nil {
			owner.Use(deps.OwnerAuth)
		}
		owner.POST("/create", shareHandler.CreateShare)
		owner.GET("", shareHandler.ListShares)
		owner.DELETE("/:locator", shareHandler.RevokeShare)
		owner.GET("/:locator/stats", shareHandler.GetStats)
		owner.GET("/:locator/stats/daily", shareHandler.GetDailyStats)
	}

	return router
}

// HealthCheck godoc
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/health [get]
func HealthCheck(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				components[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "up"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "components": components})
	}
}
