package persist

import (
	"context"
	"fmt"

	"github.com/yungbote/skillquest-backend/internal/docstore"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// Result describes how a logical persistence operation was satisfied.
// Degraded is set when the remote backend was attempted and failed, so the
// local backend served the operation instead; Reason carries the remote
// failure in report form. Restricted-mode operations run local by request
// and are not degraded. The shape is identical whichever backend ran, so
// callers can surface degradation without ever branching on backend
// identity.
type Result struct {
	Degraded bool
	Reason   string
}

// Backend is one persistence strategy for the four logical profile
// operations. LoadProfile returns (nil, nil) when no completed profile
// exists; absence is an answer, not a failure.
type Backend interface {
	Name() string
	SaveRecord(ctx context.Context, bundle types.RecordBundle) error
	LoadProfile(ctx context.Context, userID string) (*types.IntegratedUserProfile, error)
	SaveDailyProgress(ctx context.Context, profile *types.IntegratedUserProfile, doc types.DailyProgressDoc) error
	Purge(ctx context.Context, userID string) error
}

// Router routes each logical operation to the remote or local backend.
// Mode is re-resolved on every call, so flipping SYNC_MODE affects the next
// operation rather than a cached decision. In full mode a remote failure of
// any kind falls back to local exactly once, silently from the caller's
// point of view; there are no retries.
type Router struct {
	resolver runmode.Resolver
	remote   Backend
	local    Backend
	log      *logger.Logger
}

func NewRouter(resolver runmode.Resolver, remote, local Backend, baseLog *logger.Logger) *Router {
	return &Router{
		resolver: resolver,
		remote:   remote,
		local:    local,
		log:      baseLog.With("service", "PersistenceRouter"),
	}
}

func (r *Router) SaveRecord(ctx context.Context, bundle types.RecordBundle) (Result, error) {
	return r.write(ctx, "save_record", func(b Backend) error {
		return b.SaveRecord(ctx, bundle)
	})
}

func (r *Router) SaveDailyProgress(ctx context.Context, profile *types.IntegratedUserProfile, doc types.DailyProgressDoc) (Result, error) {
	return r.write(ctx, "save_progress", func(b Backend) error {
		return b.SaveDailyProgress(ctx, profile, doc)
	})
}

func (r *Router) Purge(ctx context.Context, userID string) (Result, error) {
	return r.write(ctx, "purge", func(b Backend) error {
		return b.Purge(ctx, userID)
	})
}

// LoadProfile follows the same routing as writes. A remote (nil, nil) is a
// real answer (the user has not completed onboarding) and does not fall
// back; only remote failure does.
func (r *Router) LoadProfile(ctx context.Context, userID string) (*types.IntegratedUserProfile, Result, error) {
	if r.resolver.Resolve() == runmode.ModeRestricted {
		p, err := r.local.LoadProfile(ctx, userID)
		return p, Result{}, err
	}

	p, err := r.remote.LoadProfile(ctx, userID)
	if err == nil {
		return p, Result{}, nil
	}
	res := Result{Degraded: true, Reason: degradeReason("load_profile", err)}
	r.log.Warn("Remote load failed, serving local cache", "op", "load_profile", "error", err)

	lp, lerr := r.local.LoadProfile(ctx, userID)
	if lerr != nil {
		return nil, res, fmt.Errorf("load_profile: local fallback after remote failure: %w", lerr)
	}
	return lp, res, nil
}

func (r *Router) write(ctx context.Context, op string, do func(Backend) error) (Result, error) {
	if r.resolver.Resolve() == runmode.ModeRestricted {
		if err := do(r.local); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		return Result{}, nil
	}

	err := do(r.remote)
	if err == nil {
		return Result{}, nil
	}
	res := Result{Degraded: true, Reason: degradeReason(op, err)}
	r.log.Warn("Remote persistence failed, falling back to local", "op", op, "error", err)

	if lerr := do(r.local); lerr != nil {
		return res, fmt.Errorf("%s: local fallback after remote failure: %w", op, lerr)
	}
	return res, nil
}

// degradeReason compresses the remote failure into the short form carried
// on stage reports: the store error kind when one is present, otherwise the
// message itself.
func degradeReason(op string, err error) string {
	if kind := docstore.KindOf(err); kind != "" {
		return fmt.Sprintf("remote %s failed: %s", op, kind)
	}
	return fmt.Sprintf("remote %s failed: %v", op, err)
}
