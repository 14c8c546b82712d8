package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/persist"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// ProfileLoader is the read side. Load returns (nil, nil) when the user has
// no completed profile anywhere; that is an answer, not an error.
type ProfileLoader interface {
	Load(ctx context.Context, userID uuid.UUID) (*types.IntegratedUserProfile, error)
}

type profileLoader struct {
	resolver runmode.Resolver
	router   *persist.Router
	cache    cachestore.Store
	log      *logger.Logger
	now      func() time.Time
}

func NewProfileLoader(resolver runmode.Resolver, router *persist.Router, cache cachestore.Store, baseLog *logger.Logger) ProfileLoader {
	return &profileLoader{
		resolver: resolver,
		router:   router,
		cache:    cache,
		log:      baseLog.With("service", "ProfileLoader"),
		now:      time.Now,
	}
}

func (s *profileLoader) Load(ctx context.Context, userID uuid.UUID) (*types.IntegratedUserProfile, error) {
	uid := userID.String()

	if s.resolver.Resolve() == runmode.ModeRestricted {
		return s.loadCached(ctx, uid)
	}

	p, res, err := s.router.LoadProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	if res.Degraded {
		// Remote failed; p is already the cached copy (or nil when the
		// cache is empty too). Nothing to refresh.
		return p, nil
	}
	if p == nil {
		return nil, nil
	}

	// A locally written revision (restricted-mode quest completion that
	// never reached the remote) outranks a remote copy that does not carry
	// it yet: cached state is authoritative once written.
	cached, cerr := s.loadCached(ctx, uid)
	if cerr != nil {
		s.log.Warn("cached profile unreadable during load", "user_id", uid, "error", cerr)
	} else if cached != nil && cached.Revision > p.Revision {
		s.log.Info("remote profile older than cached copy; serving cache",
			"user_id", uid, "remote_revision", p.Revision, "cached_revision", cached.Revision)
		return cached, nil
	}

	s.refreshCache(ctx, p)
	return p, nil
}

func (s *profileLoader) loadCached(ctx context.Context, uid string) (*types.IntegratedUserProfile, error) {
	raw, err := s.cache.Get(ctx, uid, cachestore.KeyCachedProfile)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return persist.UnmarshalProfile(raw)
}

// refreshCache updates the warm copy and the sync watermark after a
// successful remote load. Failures are logged only; the profile is already
// in hand.
func (s *profileLoader) refreshCache(ctx context.Context, p *types.IntegratedUserProfile) {
	uid := p.UserID.String()
	if err := cacheIntegratedProfile(ctx, s.cache, p); err != nil {
		s.log.Warn("cache refresh after remote load failed", "user_id", uid, "error", err)
		return
	}
	stamp := []byte(s.now().UTC().Format(time.RFC3339))
	if err := s.cache.Put(ctx, uid, cachestore.KeyLastSyncTimestamp, stamp); err != nil {
		s.log.Warn("sync timestamp write failed", "user_id", uid, "error", err)
	}
}
