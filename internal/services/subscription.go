package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yungbote/skillquest-backend/internal/docstore"
	"github.com/yungbote/skillquest-backend/internal/persist"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// revisionGuardSize bounds the last-delivered-revision cache. Eviction of a
// live entry is harmless: the next notification re-delivers one profile the
// subscriber already holds.
const revisionGuardSize = 1024

// SubscriptionService exposes live profile updates. Each remote change
// re-runs the full load path and delivers a reassembled profile, never a raw
// delta. Deliveries whose revision is not newer than the last one handed to
// the same subscription are discarded, so a stale notification can never
// clobber a fresher local write. If subscription setup fails, cb receives
// nil exactly once and the returned unsubscribe is a no-op.
type SubscriptionService interface {
	SubscribeToProfile(ctx context.Context, userID uuid.UUID, cb func(*types.IntegratedUserProfile)) func()
	Forget(userID uuid.UUID)
}

type subscriptionService struct {
	store  docstore.Store
	loader ProfileLoader
	guard  *lru.Cache[string, int64]
	seq    uint64
	log    *logger.Logger
}

func NewSubscriptionService(store docstore.Store, loader ProfileLoader, baseLog *logger.Logger) (SubscriptionService, error) {
	guard, err := lru.New[string, int64](revisionGuardSize)
	if err != nil {
		return nil, fmt.Errorf("revision guard: %w", err)
	}
	return &subscriptionService{
		store:  store,
		loader: loader,
		guard:  guard,
		log:    baseLog.With("service", "SubscriptionService"),
	}, nil
}

func (s *subscriptionService) SubscribeToProfile(ctx context.Context, userID uuid.UUID, cb func(*types.IntegratedUserProfile)) func() {
	uid := userID.String()
	// Guard entries are per subscription, not per user: two open streams for
	// the same user must each see a fresh delivery, and staleness only means
	// "older than what this subscriber already holds".
	guardKey := fmt.Sprintf("%s#%d", uid, atomic.AddUint64(&s.seq, 1))

	var mu sync.Mutex
	closed := false

	onChange := func(ev docstore.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}

		p, err := s.loader.Load(ctx, userID)
		if err != nil {
			s.log.Warn("profile reload after change failed",
				"user_id", uid, "path", ev.Path, "kind", string(ev.Kind), "error", err)
			return
		}
		if p == nil {
			// The record is gone (reset). Tell the subscriber once and stop
			// tracking revisions for it.
			s.guard.Remove(guardKey)
			cb(nil)
			closed = true
			return
		}
		if last, ok := s.guard.Get(guardKey); ok && p.Revision <= last {
			s.log.Debug("discarding stale profile notification",
				"user_id", uid, "revision", p.Revision, "held", last)
			return
		}
		s.guard.Add(guardKey, p.Revision)
		cb(p)
	}

	onError := func(err error) {
		// Subscription errors do not tear the subscription down; the store
		// keeps delivering subsequent changes.
		s.log.Warn("profile subscription error", "user_id", uid, "error", err)
	}

	unsubscribe, err := s.store.Subscribe(persist.ProfileDocTarget(uid), onChange, onError)
	if err != nil {
		s.log.Warn("profile subscription setup failed", "user_id", uid, "error", err)
		cb(nil)
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			closed = true
			mu.Unlock()
			unsubscribe()
			s.guard.Remove(guardKey)
		})
	}
}

// Forget drops every revision guard entry held for the user. Called on
// profile reset so the next integration delivers regardless of its revision.
func (s *subscriptionService) Forget(userID uuid.UUID) {
	prefix := userID.String() + "#"
	for _, key := range s.guard.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.guard.Remove(key)
		}
	}
}
