package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/db"
	"github.com/yungbote/skillquest-backend/internal/docstore"
	"github.com/yungbote/skillquest-backend/internal/persist"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
)

type Stores struct {
	DB     *gorm.DB
	Docs   docstore.Store
	Cache  cachestore.Store
	Router *persist.Router

	startDocs func(context.Context) error
}

// wireStores builds the remote document store, the local cache, and the
// persistence router that arbitrates between them. Postgres is required even
// in restricted mode: the mode gates routing, not topology, and the document
// store also feeds change subscriptions.
func wireStores(log *logger.Logger, clients Clients, modes runmode.Resolver) (Stores, error) {
	log.Info("Wiring stores...")

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return Stores{}, fmt.Errorf("init postgres: %w", err)
	}
	gormDB := pg.DB()
	if err := db.AutoMigrateAll(gormDB); err != nil {
		return Stores{}, fmt.Errorf("postgres automigrate: %w", err)
	}

	docs := docstore.NewGormStore(gormDB, clients.Notifier, log)

	cache, err := cachestore.NewSQLiteStore(log)
	if err != nil {
		return Stores{}, fmt.Errorf("init local cache: %w", err)
	}

	router := persist.NewRouter(
		modes,
		persist.NewRemoteBackend(docs, log),
		persist.NewLocalBackend(cache, log),
		log,
	)

	return Stores{
		DB:        gormDB,
		Docs:      docs,
		Cache:     cache,
		Router:    router,
		startDocs: docs.Start,
	}, nil
}

// Start begins feeding notifier events into subscription dispatch.
func (s *Stores) Start(ctx context.Context) error {
	if s == nil || s.startDocs == nil {
		return nil
	}
	return s.startDocs(ctx)
}
