package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/generator"
	"github.com/yungbote/skillquest-backend/internal/graphmirror"
	"github.com/yungbote/skillquest-backend/internal/identity"
	"github.com/yungbote/skillquest-backend/internal/persist"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/profile"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// Pipeline stage names as they appear on integration reports.
const (
	StageIdentify  = "identify"
	StageDerive    = "derive_preferences"
	StageSkillMap  = "generate_skill_map"
	StageQuests    = "generate_quests"
	StageNormalize = "normalize"
	StagePersist   = "persist"
	StageAssemble  = "assemble"
	StageCache     = "cache"
	StageFallback  = "fallback_build"
)

type StageStatus string

const (
	StageOK       StageStatus = "ok"
	StageDegraded StageStatus = "degraded"
)

// StageResult is the discriminated outcome of one pipeline stage. A degraded
// stage substituted fallback behavior and the pipeline went on; nothing in a
// report ever corresponds to a failed Integrate call.
type StageResult struct {
	Stage  string      `json:"stage"`
	Status StageStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

type IntegrationReport struct {
	Stages       []StageResult `json:"stages"`
	UsedFallback bool          `json:"used_fallback"`
}

func (r *IntegrationReport) ok(stage string) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Status: StageOK})
}

func (r *IntegrationReport) degrade(stage, reason string) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Status: StageDegraded, Reason: reason})
}

// Degraded reports whether any stage substituted fallback behavior.
func (r IntegrationReport) Degraded() bool {
	for _, s := range r.Stages {
		if s.Status == StageDegraded {
			return true
		}
	}
	return r.UsedFallback
}

// IntegrationService turns raw onboarding answers into a persisted, cached,
// fully assembled profile. Integrate returns an error only when the answers
// themselves are invalid; every downstream failure degrades a stage or, if
// it escapes the pipeline, yields the fallback profile instead.
type IntegrationService interface {
	Integrate(ctx context.Context, token string, answers types.OnboardingAnswers) (*types.IntegratedUserProfile, IntegrationReport, error)
}

type integrationService struct {
	identity identity.Resolver
	gen      generator.Generator
	router   *persist.Router
	cache    cachestore.Store
	fallback FallbackBuilder
	graph    *graphmirror.Client
	log      *logger.Logger
	now      func() time.Time
}

// NewIntegrationService wires the pipeline. gen may be nil (no generator
// configured); every generation stage then degrades to static content.
// graph may be nil; the skill-graph projection is skipped.
func NewIntegrationService(
	resolver identity.Resolver,
	gen generator.Generator,
	router *persist.Router,
	cache cachestore.Store,
	fallback FallbackBuilder,
	graph *graphmirror.Client,
	baseLog *logger.Logger,
) IntegrationService {
	return &integrationService{
		identity: resolver,
		gen:      gen,
		router:   router,
		cache:    cache,
		fallback: fallback,
		graph:    graph,
		log:      baseLog.With("service", "IntegrationService"),
		now:      time.Now,
	}
}

func (s *integrationService) Integrate(ctx context.Context, token string, answers types.OnboardingAnswers) (*types.IntegratedUserProfile, IntegrationReport, error) {
	if err := profile.ValidateAnswers(answers); err != nil {
		return nil, IntegrationReport{}, err
	}

	report := &IntegrationReport{}

	ident, err := s.identity.Resolve(ctx, token)
	if err != nil {
		s.log.Warn("identity resolution failed; building fallback profile", "error", err)
		report.degrade(StageIdentify, fmt.Sprintf("identity resolution failed: %v", err))
		p := s.buildFallback(ctx, uuid.Nil, answers, report)
		return p, *report, nil
	}
	report.ok(StageIdentify)

	p, err := s.run(ctx, ident.UserID, answers, report)
	if err != nil {
		s.log.Error("integration escaped; building fallback profile",
			"user_id", ident.UserID.String(), "error", err)
		p = s.buildFallback(ctx, ident.UserID, answers, report)
	}
	return p, *report, nil
}

// run executes stages 2-8 for a resolved user. An error return means a stage
// with no shunt of its own escaped; the caller substitutes the fallback
// profile so the Integrate contract holds.
func (s *integrationService) run(ctx context.Context, userID uuid.UUID, answers types.OnboardingAnswers, report *IntegrationReport) (*types.IntegratedUserProfile, error) {
	now := s.now().UTC()

	prefs := profile.DerivePreferences(answers)
	report.ok(StageDerive)

	atoms := s.generateSkillMap(ctx, answers, report)
	quests := s.generateQuests(ctx, answers, prefs, atoms, report)

	bundle := profile.Normalize(profile.NormalizeInput{
		UserID:      userID,
		Answers:     answers,
		Preferences: prefs,
		SkillAtoms:  atoms,
		Quests:      quests,
		Settings:    defaultSettings(),
		Revision:    profile.NextRevision(0, now),
		Now:         now,
	})
	report.ok(StageNormalize)

	res, err := s.router.SaveRecord(ctx, bundle)
	switch {
	case err != nil:
		// Both backends refused the write. Integration still completes from
		// the in-memory bundle; the caching stage is the durability backstop.
		s.log.Error("persistence failed on every backend", "user_id", userID.String(), "error", err)
		report.degrade(StagePersist, fmt.Sprintf("persistence failed: %v", err))
	case res.Degraded:
		report.degrade(StagePersist, res.Reason)
	default:
		report.ok(StagePersist)
	}

	p, err := profile.Assemble(bundle)
	if err != nil {
		report.degrade(StageAssemble, err.Error())
		return nil, fmt.Errorf("assemble: %w", err)
	}
	report.ok(StageAssemble)

	if err := cacheIntegratedProfile(ctx, s.cache, p); err != nil {
		s.log.Warn("cache write after integration failed", "user_id", userID.String(), "error", err)
		report.degrade(StageCache, fmt.Sprintf("cache write failed: %v", err))
	} else {
		report.ok(StageCache)
	}

	if err := graphmirror.MirrorSkillMap(ctx, s.graph, s.log, userID, bundle.Goal.ID, atoms); err != nil {
		s.log.Warn("skill-graph projection failed", "user_id", userID.String(), "error", err)
	}

	return p, nil
}

func (s *integrationService) generateSkillMap(ctx context.Context, answers types.OnboardingAnswers, report *IntegrationReport) []types.SkillAtom {
	var (
		atoms []types.SkillAtom
		err   error
	)
	if s.gen == nil {
		err = fmt.Errorf("no generator configured")
	} else {
		atoms, err = s.gen.GenerateSkillMap(ctx, answers)
		if err == nil && len(atoms) == 0 {
			err = fmt.Errorf("generator returned an empty skill map")
		}
		if err == nil {
			err = profile.ValidateSkillAtoms(atoms)
		}
	}
	if err != nil {
		s.log.Warn("skill map generation degraded to static content", "error", err)
		report.degrade(StageSkillMap, fmt.Sprintf("generation failed: %v", err))
		return generator.FallbackSkillMap(s.log, answers)
	}
	report.ok(StageSkillMap)
	return atoms
}

func (s *integrationService) generateQuests(ctx context.Context, answers types.OnboardingAnswers, prefs types.PreferenceProfile, atoms []types.SkillAtom, report *IntegrationReport) []types.Quest {
	var (
		quests []types.Quest
		err    error
	)
	if s.gen == nil {
		err = fmt.Errorf("no generator configured")
	} else {
		quests, err = s.gen.GenerateQuests(ctx, prefs, atoms)
		if err == nil && len(quests) == 0 {
			err = fmt.Errorf("generator returned no quests")
		}
		if err == nil {
			err = profile.ValidateQuests(quests, atoms)
		}
	}
	if err != nil {
		s.log.Warn("quest generation degraded to static content", "error", err)
		report.degrade(StageQuests, fmt.Sprintf("generation failed: %v", err))
		return []types.Quest{generator.FallbackQuest(s.log, answers, atoms)}
	}
	report.ok(StageQuests)
	return quests
}

func (s *integrationService) buildFallback(ctx context.Context, userID uuid.UUID, answers types.OnboardingAnswers, report *IntegrationReport) *types.IntegratedUserProfile {
	p := s.fallback.Build(ctx, userID, answers)
	report.UsedFallback = true
	report.ok(StageFallback)
	return p
}

func defaultSettings() types.ProfileSettings {
	return types.ProfileSettings{
		NotificationsEnabled: true,
		Timezone:             "UTC",
		DailyReminderHour:    9,
	}
}

// cacheIntegratedProfile writes the assembled profile into the per-user
// cached_profile slot. Shared by integration, the loader and quest
// completion so every writer agrees on the slot's encoding.
func cacheIntegratedProfile(ctx context.Context, cache cachestore.Store, p *types.IntegratedUserProfile) error {
	raw, err := persist.MarshalProfile(p)
	if err != nil {
		return err
	}
	return cache.Put(ctx, p.UserID.String(), cachestore.KeyCachedProfile, raw)
}
