package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/skillquest-backend/internal/clients/openai"
	"github.com/yungbote/skillquest-backend/internal/clients/redis"
	"github.com/yungbote/skillquest-backend/internal/docstore"
	"github.com/yungbote/skillquest-backend/internal/graphmirror"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
)

type Clients struct {
	Notifier docstore.Notifier
	OpenAI   openai.Client       // nil when OPENAI_API_KEY is unset
	Graph    *graphmirror.Client // nil when NEO4J_URI is unset
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	// Change bus: redis when configured, in-process otherwise. Without redis
	// a multi-instance deployment would miss cross-instance change events.
	var notifier docstore.Notifier
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		bus, err := redis.NewChangeBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis change bus: %w", err)
		}
		notifier = bus
	} else {
		log.Info("REDIS_ADDR unset; using in-process change notifier")
		notifier = docstore.NewInProcessNotifier()
	}

	// Content generation: optional. Without a client the integration
	// pipeline degrades onto its static fallback content instead of failing.
	var oa openai.Client
	if strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != "" {
		c, err := openai.NewClient(log)
		if err != nil {
			_ = notifier.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		oa = c
	} else {
		log.Warn("OPENAI_API_KEY unset; skill maps and quests will use fallback content")
	}

	// Skill-graph projection: optional, nil disables mirroring entirely.
	graph, err := graphmirror.NewFromEnv(log)
	if err != nil {
		_ = notifier.Close()
		return Clients{}, fmt.Errorf("init graph mirror: %w", err)
	}

	return Clients{Notifier: notifier, OpenAI: oa, Graph: graph}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Graph != nil {
		_ = c.Graph.Close(context.Background())
	}
	if c.Notifier != nil {
		_ = c.Notifier.Close()
	}
}
