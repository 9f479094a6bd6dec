package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leaselens-backend/internal/account"
	"leaselens-backend/internal/chat"
	"leaselens-backend/internal/documents"
	"leaselens-backend/internal/portfolio"
	"leaselens-backend/internal/services/health"
	"leaselens-backend/internal/shared/config"
	"leaselens-backend/internal/shared/metrics"
	"leaselens-backend/internal/shared/server/middleware"
	"leaselens-backend/internal/shared/server/respond"
)

// Rate limit groups.
const (
	rateGroupDefault = "DEFAULT"
	rateGroupUpload  = "UPLOAD"
	rateGroupChat    = "CHAT"
)

// RouterDeps are the handlers mounted under /api/v1.
type RouterDeps struct {
	Config           config.Config
	DocumentHandler  *documents.Handler
	ChatHandler      *chat.Handler
	PortfolioHandler *portfolio.Handler
	AccountHandler   *account.Handler
	Health           *health.Service
	// RateLimiter overrides the shared bucket store, mainly for tests.
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				rateGroupDefault: {Rate: 10, Burst: 60},
				rateGroupUpload:  {Rate: 1, Burst: 10},
				rateGroupChat:    {Rate: 1, Burst: 10},
			},
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status())
	})
	api.GET("/health/ready", func(c *gin.Context) {
		report := healthSvc.Ready(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	registerMeRoutes(api)

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(api)
	}
	if deps.PortfolioHandler != nil {
		deps.PortfolioHandler.RegisterRoutes(api)
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterRoutes(api)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	switch c.FullPath() {
	case "/api/v1/upload":
		return rateGroupUpload
	case "/api/v1/chat":
		return rateGroupChat
	default:
		return rateGroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
