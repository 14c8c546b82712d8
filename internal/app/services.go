package app

import (
	"fmt"

	"github.com/yungbote/skillquest-backend/internal/generator"
	"github.com/yungbote/skillquest-backend/internal/identity"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
	"github.com/yungbote/skillquest-backend/internal/services"
)

type Services struct {
	Identity     identity.Resolver
	Loader       services.ProfileLoader
	Fallback     services.FallbackBuilder
	Integration  services.IntegrationService
	Progress     services.ProgressService
	Subscription services.SubscriptionService
	Reset        services.ResetService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, stores Stores, modes runmode.Resolver) (Services, error) {
	log.Info("Wiring services...")

	resolver, err := identity.NewResolver(cfg.JWTSecretKey, cfg.AccessTokenTTL, log)
	if err != nil {
		return Services{}, fmt.Errorf("init identity resolver: %w", err)
	}

	// Generator stays nil without an openai client; the integration pipeline
	// treats that as "degrade to fallback content".
	var gen generator.Generator
	if clients.OpenAI != nil {
		g, err := generator.NewOpenAIGenerator(clients.OpenAI, log)
		if err != nil {
			return Services{}, fmt.Errorf("init generator: %w", err)
		}
		gen = g
	}

	loader := services.NewProfileLoader(modes, stores.Router, stores.Cache, log)
	fallback := services.NewFallbackBuilder(stores.Cache, log)
	integration := services.NewIntegrationService(resolver, gen, stores.Router, stores.Cache, fallback, clients.Graph, log)
	progress := services.NewProgressService(loader, stores.Router, stores.Cache, log)
	subscription, err := services.NewSubscriptionService(stores.Docs, loader, log)
	if err != nil {
		return Services{}, fmt.Errorf("init subscription service: %w", err)
	}
	reset := services.NewResetService(stores.Router, stores.Cache, subscription, clients.Graph, log)

	return Services{
		Identity:     resolver,
		Loader:       loader,
		Fallback:     fallback,
		Integration:  integration,
		Progress:     progress,
		Subscription: subscription,
		Reset:        reset,
	}, nil
}
