package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/profile"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// MarshalProfile and UnmarshalProfile fix the serialized form of the
// cached_profile slot. The loader and the subscription manager reuse them
// when refreshing the cache, so every writer of the slot agrees on the
// encoding.
func MarshalProfile(p *types.IntegratedUserProfile) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode cached profile: %w", err)
	}
	return raw, nil
}

func UnmarshalProfile(raw []byte) (*types.IntegratedUserProfile, error) {
	var p types.IntegratedUserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &p, nil
}

type localBackend struct {
	cache cachestore.Store
	log   *logger.Logger
}

// NewLocalBackend persists profiles to the on-device cache. The write side
// assembles the bundle first: the cache holds one serialized aggregate per
// user, not the denormalized documents.
func NewLocalBackend(cache cachestore.Store, baseLog *logger.Logger) Backend {
	return &localBackend{cache: cache, log: baseLog.With("service", "LocalPersistence")}
}

func (b *localBackend) Name() string { return "local" }

func (b *localBackend) SaveRecord(ctx context.Context, bundle types.RecordBundle) error {
	p, err := profile.Assemble(bundle)
	if err != nil {
		return fmt.Errorf("assemble for cache: %w", err)
	}
	return b.storeProfile(ctx, p)
}

func (b *localBackend) LoadProfile(ctx context.Context, userID string) (*types.IntegratedUserProfile, error) {
	raw, err := b.cache.Get(ctx, userID, cachestore.KeyCachedProfile)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return UnmarshalProfile(raw)
}

func (b *localBackend) SaveDailyProgress(ctx context.Context, p *types.IntegratedUserProfile, _ types.DailyProgressDoc) error {
	if p == nil {
		return fmt.Errorf("save progress: nil profile")
	}
	return b.storeProfile(ctx, p)
}

func (b *localBackend) Purge(ctx context.Context, userID string) error {
	return b.cache.Clear(ctx, userID)
}

func (b *localBackend) storeProfile(ctx context.Context, p *types.IntegratedUserProfile) error {
	raw, err := MarshalProfile(p)
	if err != nil {
		return err
	}
	return b.cache.Put(ctx, p.UserID.String(), cachestore.KeyCachedProfile, raw)
}
