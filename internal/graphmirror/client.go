package graphmirror

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/utils"
)

// Client wraps the neo4j driver for the optional skill-graph projection.
// The graph is a read-model only: nothing in the load path depends on it,
// and every mirror operation is best-effort.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

// NewFromEnv builds a client from NEO4J_* environment variables. An unset
// NEO4J_URI means the projection is disabled; that returns (nil, nil) and
// callers treat a nil client as a no-op sink.
func NewFromEnv(baseLog *logger.Logger) (*Client, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("graphmirror: logger required")
	}

	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		return nil, nil
	}

	log := baseLog.With("client", "GraphMirror")
	user := utils.GetEnv("NEO4J_USER", "neo4j", log)
	password := os.Getenv("NEO4J_PASSWORD")
	database := strings.TrimSpace(os.Getenv("NEO4J_DATABASE"))
	timeout := time.Duration(utils.GetEnvAsInt("NEO4J_TIMEOUT_SECONDS", 10, log)) * time.Second
	maxPool := utils.GetEnvAsInt("NEO4J_MAX_POOL_SIZE", 50, log)

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graphmirror: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphmirror: verify connectivity: %w", err)
	}

	log.Info("skill-graph projection enabled", "uri", uri, "database", database)
	return &Client{Driver: driver, Database: database, log: log}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
