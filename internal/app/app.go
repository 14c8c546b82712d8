package app

import (
	"context"
	"fmt"
	"os"
	"time"

	skhttp "github.com/yungbote/skillquest-backend/internal/http"
	"github.com/yungbote/skillquest-backend/internal/observability"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
	"github.com/yungbote/skillquest-backend/internal/sse"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Stores   Stores
	Services Services
	Hub      *sse.Hub
	Server   *skhttp.Server

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	log.Info("Sync mode resolved", "mode", string(cfg.Sync.Mode), "source", cfg.Sync.ModeSource())

	// The env resolver re-reads on every call so a live SYNC_MODE flip takes
	// effect per operation without a restart.
	modes := runmode.NewEnvResolver()

	clients, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	stores, err := wireStores(log, clients, modes)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(log, cfg, clients, stores, modes)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	hub := sse.NewHub(log)
	handlerset := wireHandlers(log, serviceset, hub, modes)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, handlerset, middleware)

	return &App{
		Log:      log,
		Cfg:      cfg,
		Clients:  clients,
		Stores:   stores,
		Services: serviceset,
		Hub:      hub,
		Server:   server,
	}, nil
}

// Start begins background work: tracing and the change-event feed. Call it
// before Run.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "skillquest-backend",
		Environment: a.Cfg.Environment,
		Version:     a.Cfg.Version,
	})

	if err := a.Stores.Start(ctx); err != nil {
		return fmt.Errorf("start change feed: %w", err)
	}
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", addr, "mode", string(a.Cfg.Sync.Mode))
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.Server.Shutdown(ctx)
		cancel()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
		a.otelShutdown = nil
	}
	a.Clients.Close()
	if a.Log != nil {
		a.Log.Sync()
	}
}
