package app

import (
	skhttp "github.com/yungbote/skillquest-backend/internal/http"
	httpH "github.com/yungbote/skillquest-backend/internal/http/handlers"
	httpMW "github.com/yungbote/skillquest-backend/internal/http/middleware"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
	"github.com/yungbote/skillquest-backend/internal/sse"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Identity   *httpH.IdentityHandler
	Onboarding *httpH.OnboardingHandler
	Profile    *httpH.ProfileHandler
	Quest      *httpH.QuestHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Identity),
	}
}

func wireHandlers(log *logger.Logger, services Services, hub *sse.Hub, modes runmode.Resolver) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(modes),
		Identity:   httpH.NewIdentityHandler(services.Identity, log),
		Onboarding: httpH.NewOnboardingHandler(services.Integration, hub, log),
		Profile:    httpH.NewProfileHandler(services.Loader, services.Reset, services.Subscription, hub, log),
		Quest:      httpH.NewQuestHandler(services.Progress, hub, log),
	}
}

func wireServer(log *logger.Logger, handlers Handlers, middleware Middleware) *skhttp.Server {
	return skhttp.NewServer(skhttp.RouterConfig{
		Log:               log,
		AuthMiddleware:    middleware.Auth,
		HealthHandler:     handlers.Health,
		IdentityHandler:   handlers.Identity,
		OnboardingHandler: handlers.Onboarding,
		ProfileHandler:    handlers.Profile,
		QuestHandler:      handlers.Quest,
	})
}
