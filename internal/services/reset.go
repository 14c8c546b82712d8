package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/graphmirror"
	"github.com/yungbote/skillquest-backend/internal/persist"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
)

// ErrResetIncomplete means the remote purge could not run and only local
// state was cleared. Served from full mode this is a retryable failure: the
// remote record would otherwise reappear on the next load.
var ErrResetIncomplete = errors.New("remote purge did not complete")

// ResetService wipes a user's derived state everywhere: remote documents,
// the local cache slot, revision guard entries and the graph projection.
// After a reset the user is back at onboarding.
type ResetService interface {
	Reset(ctx context.Context, userID uuid.UUID) error
}

type resetService struct {
	router *persist.Router
	cache  cachestore.Store
	subs   SubscriptionService
	graph  *graphmirror.Client
	log    *logger.Logger
}

func NewResetService(router *persist.Router, cache cachestore.Store, subs SubscriptionService, graph *graphmirror.Client, baseLog *logger.Logger) ResetService {
	return &resetService{
		router: router,
		cache:  cache,
		subs:   subs,
		graph:  graph,
		log:    baseLog.With("service", "ResetService"),
	}
}

func (s *resetService) Reset(ctx context.Context, userID uuid.UUID) error {
	uid := userID.String()

	res, err := s.router.Purge(ctx, uid)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	if res.Degraded {
		s.log.Warn("remote purge degraded; refusing partial reset", "user_id", uid, "reason", res.Reason)
		return fmt.Errorf("%w: %s", ErrResetIncomplete, res.Reason)
	}

	if err := s.cache.Clear(ctx, uid); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.subs.Forget(userID)

	if err := graphmirror.RemoveUser(ctx, s.graph, userID); err != nil {
		s.log.Warn("graph projection cleanup failed", "user_id", uid, "error", err)
	}

	s.log.Info("profile reset", "user_id", uid)
	return nil
}
