package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/skillquest-backend/internal/http/handlers"
	httpMW "github.com/yungbote/skillquest-backend/internal/http/middleware"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler     *httpH.HealthHandler
	IdentityHandler   *httpH.IdentityHandler
	OnboardingHandler *httpH.OnboardingHandler
	ProfileHandler    *httpH.ProfileHandler
	QuestHandler      *httpH.QuestHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	// gin.New, not gin.Default: the structured request logger replaces gin's.
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("skillquest-backend"))
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Identity (public): the only route reachable without a device token.
		if cfg.IdentityHandler != nil {
			api.POST("/identity", cfg.IdentityHandler.Resolve)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Onboarding
		if cfg.OnboardingHandler != nil {
			protected.POST("/onboarding", cfg.OnboardingHandler.Submit)
		}

		// Profile
		if cfg.ProfileHandler != nil {
			protected.GET("/profile", cfg.ProfileHandler.Get)
			protected.GET("/profile/stream", cfg.ProfileHandler.Stream)
			protected.POST("/profile/reset", cfg.ProfileHandler.Reset)
		}

		// Quests
		if cfg.QuestHandler != nil {
			protected.POST("/quests/:questId/complete", cfg.QuestHandler.Complete)
		}
	}

	return r
}
