package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/generator"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/profile"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// FallbackBuilder produces a complete, internally consistent profile from
// answers and static templates alone. No network, no store reads: it is the
// terminal safety net behind Integrate, so Build cannot fail. A nil userID
// mints a synthetic one.
type FallbackBuilder interface {
	Build(ctx context.Context, userID uuid.UUID, answers types.OnboardingAnswers) *types.IntegratedUserProfile
}

type fallbackBuilder struct {
	cache cachestore.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewFallbackBuilder(cache cachestore.Store, baseLog *logger.Logger) FallbackBuilder {
	return &fallbackBuilder{
		cache: cache,
		log:   baseLog.With("service", "FallbackBuilder"),
		now:   time.Now,
	}
}

func (b *fallbackBuilder) Build(ctx context.Context, userID uuid.UUID, answers types.OnboardingAnswers) *types.IntegratedUserProfile {
	if userID == uuid.Nil {
		userID = uuid.New()
		b.log.Info("minted synthetic user id for fallback profile", "user_id", userID.String())
	}
	now := b.now().UTC()

	atoms := generator.FallbackSkillMap(b.log, answers)
	quest := generator.FallbackQuest(b.log, answers, atoms)

	bundle := profile.Normalize(profile.NormalizeInput{
		UserID:      userID,
		Answers:     answers,
		Preferences: profile.DerivePreferences(answers),
		SkillAtoms:  atoms,
		Quests:      []types.Quest{quest},
		Settings:    defaultSettings(),
		Revision:    profile.NextRevision(0, now),
		Now:         now,
	})

	p, err := profile.Assemble(bundle)
	if err != nil {
		// Unreachable with a freshly minted uuid; assemble from the bundle
		// by hand so the never-fails contract survives even a bad caller.
		b.log.Error("fallback assemble failed; constructing profile directly", "error", err)
		p = &types.IntegratedUserProfile{
			UserID:             userID,
			Revision:           bundle.Profile.Revision,
			OnboardingComplete: true,
			ActiveGoalID:       bundle.Goal.ID,
			Answers:            answers,
			Preferences:        bundle.Profile.Preferences,
			SkillAtoms:         atoms,
			Quests:             []types.Quest{quest},
			Settings:           bundle.Profile.Settings,
			Progress: types.Progress{
				TodaysQuests:     []types.TodayQuest{{QuestID: quest.ID}},
				TodaysProgress:   types.TodaysProgress{Total: 1},
				SkillProgression: map[string]float64{},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	// The durability backstop: a fallback profile is only useful if the app
	// can read it back after restart.
	if err := cacheIntegratedProfile(ctx, b.cache, p); err != nil {
		b.log.Warn("caching fallback profile failed", "user_id", p.UserID.String(), "error", err)
	}
	return p
}
