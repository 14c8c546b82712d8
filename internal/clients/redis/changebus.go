package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/skillquest-backend/internal/docstore"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/utils"
)

const dialTimeout = 5 * time.Second

// ChangeBus fans document change events out across process instances over
// redis pub/sub, so a subscription held on one instance sees writes made on
// another. It implements docstore.Notifier.
type ChangeBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

type busSettings struct {
	addr     string
	channel  string
	password string
	db       int
}

func busSettingsFromEnv(log *logger.Logger) (busSettings, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return busSettings{}, fmt.Errorf("missing REDIS_ADDR")
	}
	return busSettings{
		addr:     addr,
		channel:  utils.GetEnv("REDIS_CHANNEL", "docstore.changes", log),
		password: os.Getenv("REDIS_PASSWORD"),
		db:       utils.GetEnvAsInt("REDIS_DB", 0, log),
	}, nil
}

func NewChangeBus(baseLog *logger.Logger) (*ChangeBus, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	log := baseLog.With("client", "RedisChangeBus")

	settings, err := busSettingsFromEnv(log)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        settings.addr,
		Password:    settings.password,
		DB:          settings.db,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &ChangeBus{log: log, rdb: rdb, channel: settings.channel}, nil
}

func (b *ChangeBus) Publish(ctx context.Context, ev docstore.ChangeEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis change bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Start subscribes to the change channel and forwards decoded events until
// ctx is cancelled. The subscribe is confirmed synchronously so a caller
// never misses events published after Start returns.
func (b *ChangeBus) Start(ctx context.Context, onEvent func(ev docstore.ChangeEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis change bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go b.forward(ctx, sub, onEvent)
	return nil
}

func (b *ChangeBus) forward(ctx context.Context, sub *goredis.PubSub, onEvent func(ev docstore.ChangeEvent)) {
	defer func() { _ = sub.Close() }()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok || m == nil {
				return
			}
			ev, err := decodeEvent(m.Payload)
			if err != nil {
				b.log.Warn("bad redis change payload", "error", err)
				continue
			}
			onEvent(ev)
		}
	}
}

func decodeEvent(payload string) (docstore.ChangeEvent, error) {
	var ev docstore.ChangeEvent
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}

func (b *ChangeBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
