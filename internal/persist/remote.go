package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/skillquest-backend/internal/docstore"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/profile"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// Collection layout under the document store. The profile document lives in
// the root users collection keyed by user id; goals, quests and dated
// progress documents live in per-user sub-collections.
const usersCollection = "users"

func goalsCollection(uid string) string    { return fmt.Sprintf("users/%s/goals", uid) }
func questsCollection(uid string) string   { return fmt.Sprintf("users/%s/quests", uid) }
func progressCollection(uid string) string { return fmt.Sprintf("users/%s/progress", uid) }

// ProfileDocTarget addresses a user's profile document for subscriptions.
// Every logical mutation touches the profile document (integration upserts
// it, progress writes bump its revision, purge deletes it), so watching it
// is enough to observe the whole record.
func ProfileDocTarget(userID string) docstore.Target {
	return docstore.Target{Path: usersCollection, DocID: userID}
}

type remoteBackend struct {
	store docstore.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewRemoteBackend persists profiles to the shared document store.
func NewRemoteBackend(store docstore.Store, baseLog *logger.Logger) Backend {
	return &remoteBackend{
		store: store,
		log:   baseLog.With("service", "RemotePersistence"),
		now:   time.Now,
	}
}

func (b *remoteBackend) Name() string { return "remote" }

// SaveRecord writes the bundle in a fixed sequence: profile document, goal
// document, the quest documents as one atomic batch, then the progress
// document. Readers racing a partially applied sequence are tolerated by
// assembly, which drops references to documents that have not landed yet.
func (b *remoteBackend) SaveRecord(ctx context.Context, bundle types.RecordBundle) error {
	uid := bundle.Profile.UserID
	if uid == "" {
		return fmt.Errorf("save record: empty user id")
	}

	if err := b.upsert(ctx, usersCollection, uid, bundle.Profile); err != nil {
		return fmt.Errorf("profile doc: %w", err)
	}
	if err := b.upsert(ctx, goalsCollection(uid), bundle.Goal.ID, bundle.Goal); err != nil {
		return fmt.Errorf("goal doc: %w", err)
	}
	if len(bundle.Quests) > 0 {
		ops := make([]docstore.WriteOp, 0, len(bundle.Quests))
		for _, q := range bundle.Quests {
			ops = append(ops, docstore.WriteOp{
				Kind:  docstore.WriteCreate,
				Path:  questsCollection(uid),
				DocID: q.ID,
				Data:  q,
			})
		}
		if err := b.store.BatchWrite(ctx, ops); err != nil {
			return fmt.Errorf("quest docs: %w", err)
		}
	}
	if err := b.upsert(ctx, progressCollection(uid), bundle.Progress.Date, bundle.Progress); err != nil {
		return fmt.Errorf("progress doc: %w", err)
	}
	return nil
}

// LoadProfile reads the profile document, then the active goal, its quests
// and today's progress concurrently, and reassembles the aggregate. Absent
// profile or incomplete onboarding returns (nil, nil). A goal with no
// quests, or a day with no progress document yet, still loads: progress is
// synthesized in memory and never written back by the load path.
func (b *remoteBackend) LoadProfile(ctx context.Context, userID string) (*types.IntegratedUserProfile, error) {
	doc, err := b.store.Read(ctx, usersCollection, userID)
	if err != nil {
		return nil, fmt.Errorf("profile doc: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	var profileDoc types.ProfileDoc
	if err := json.Unmarshal(doc.Data, &profileDoc); err != nil {
		return nil, fmt.Errorf("decode profile doc: %w", err)
	}
	if !profileDoc.OnboardingComplete {
		return nil, nil
	}

	var (
		goalDoc  types.GoalDoc
		quests   []types.QuestDoc
		progDoc  *types.DailyProgressDoc
		today    = profile.LocalDate(profileDoc.Settings.Timezone, b.now())
		activeID = profileDoc.ActiveGoalID
	)

	g, gctx := errgroup.WithContext(ctx)
	if activeID != "" {
		g.Go(func() error {
			d, err := b.store.Read(gctx, goalsCollection(userID), activeID)
			if err != nil {
				return fmt.Errorf("goal doc: %w", err)
			}
			if d == nil {
				return nil
			}
			if err := json.Unmarshal(d.Data, &goalDoc); err != nil {
				return fmt.Errorf("decode goal doc: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			docs, err := b.store.Query(gctx, questsCollection(userID), []docstore.Condition{
				{Field: "goal_id", Op: docstore.OpEq, Value: activeID},
			})
			if err != nil {
				return fmt.Errorf("quest docs: %w", err)
			}
			out := make([]types.QuestDoc, 0, len(docs))
			for _, d := range docs {
				var qd types.QuestDoc
				if err := json.Unmarshal(d.Data, &qd); err != nil {
					return fmt.Errorf("decode quest doc %s: %w", d.ID, err)
				}
				out = append(out, qd)
			}
			// order is numeric in the payload; the store's order-by
			// compares JSONB text, so sort here
			sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
			quests = out
			return nil
		})
	}
	g.Go(func() error {
		d, err := b.store.Read(gctx, progressCollection(userID), today)
		if err != nil {
			return fmt.Errorf("progress doc: %w", err)
		}
		if d == nil {
			return nil
		}
		var pd types.DailyProgressDoc
		if err := json.Unmarshal(d.Data, &pd); err != nil {
			return fmt.Errorf("decode progress doc: %w", err)
		}
		progDoc = &pd
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle := types.RecordBundle{Profile: profileDoc, Goal: goalDoc, Quests: quests}
	if progDoc != nil {
		bundle.Progress = *progDoc
	} else {
		bundle.Progress = profile.SynthesizeDailyProgress(
			userID, activeID, quests, goalDoc.SkillAtoms, profileDoc.Settings, b.now())
	}
	return profile.Assemble(bundle)
}

// SaveDailyProgress upserts the dated progress document and bumps the
// profile document's revision, so subscribers watching the profile see one
// change per logical mutation.
func (b *remoteBackend) SaveDailyProgress(ctx context.Context, p *types.IntegratedUserProfile, doc types.DailyProgressDoc) error {
	if p == nil {
		return fmt.Errorf("save progress: nil profile")
	}
	uid := doc.UserID
	if uid == "" {
		uid = p.UserID.String()
	}

	if err := b.upsert(ctx, progressCollection(uid), doc.Date, doc); err != nil {
		return fmt.Errorf("progress doc: %w", err)
	}
	partial := map[string]interface{}{
		"revision":             p.Revision,
		"streak":               p.Progress.Streak,
		"last_completion_date": p.Progress.LastCompletionDate,
		"updated_at":           p.UpdatedAt,
	}
	if err := b.store.Update(ctx, usersCollection, uid, partial); err != nil {
		return fmt.Errorf("profile doc: %w", err)
	}
	return nil
}

// Purge removes every document under the user's root and the profile
// document itself in one batch, so a failed purge leaves the record intact
// rather than half-deleted.
func (b *remoteBackend) Purge(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("purge: empty user id")
	}

	var ops []docstore.WriteOp
	for _, path := range []string{
		goalsCollection(userID),
		questsCollection(userID),
		progressCollection(userID),
	} {
		docs, err := b.store.Query(ctx, path, nil)
		if err != nil {
			return fmt.Errorf("list %s: %w", path, err)
		}
		for _, d := range docs {
			ops = append(ops, docstore.WriteOp{Kind: docstore.WriteDelete, Path: path, DocID: d.ID})
		}
	}
	ops = append(ops, docstore.WriteOp{Kind: docstore.WriteDelete, Path: usersCollection, DocID: userID})

	if err := b.store.BatchWrite(ctx, ops); err != nil {
		return fmt.Errorf("purge batch: %w", err)
	}
	return nil
}

// upsert reads first and routes to create or merge-update. The read/create
// window can lose a race to a concurrent creator; the resulting validation
// error surfaces to the router like any other remote failure.
func (b *remoteBackend) upsert(ctx context.Context, path, id string, doc interface{}) error {
	existing, err := b.store.Read(ctx, path, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return b.store.Create(ctx, path, id, doc)
	}
	partial, err := toMap(doc)
	if err != nil {
		return err
	}
	return b.store.Update(ctx, path, id, partial)
}

func toMap(doc interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
