package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/persist"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/profile"
	"github.com/yungbote/skillquest-backend/internal/types"
)

var (
	// ErrProfileNotFound means the user has no completed profile to mutate.
	ErrProfileNotFound = errors.New("no integrated profile for user")
	// ErrQuestNotFound means the quest id does not exist in the profile.
	ErrQuestNotFound = errors.New("quest not found in profile")
	// ErrTodayFull means the quest is not in today's subset and the subset
	// is at its limit. Completion is only recorded through today's entries,
	// so accepting the write would leave it untracked.
	ErrTodayFull = errors.New("todays quest list is full")
)

// ProgressService applies quest-completion deltas: today's subset, counts,
// streak, weekly pattern and per-skill progression, with a revision bump so
// subscribers and the load path can order the write against remote copies.
type ProgressService interface {
	CompleteQuest(ctx context.Context, userID uuid.UUID, questID string) (*types.IntegratedUserProfile, error)
}

type progressService struct {
	loader ProfileLoader
	router *persist.Router
	cache  cachestore.Store
	log    *logger.Logger
	now    func() time.Time
}

func NewProgressService(loader ProfileLoader, router *persist.Router, cache cachestore.Store, baseLog *logger.Logger) ProgressService {
	return &progressService{
		loader: loader,
		router: router,
		cache:  cache,
		log:    baseLog.With("service", "ProgressService"),
		now:    time.Now,
	}
}

func (s *progressService) CompleteQuest(ctx context.Context, userID uuid.UUID, questID string) (*types.IntegratedUserProfile, error) {
	p, err := s.loader.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	quest := p.QuestByID(questID)
	if quest == nil {
		return nil, ErrQuestNotFound
	}

	now := s.now()
	today := profile.LocalDate(p.Settings.Timezone, now)

	changed, err := s.apply(p, quest, today, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Already done today; completing twice is a no-op, not an error.
		return p, nil
	}

	doc := s.progressDoc(p, today, now)
	res, err := s.router.SaveDailyProgress(ctx, p, doc)
	if err != nil {
		return nil, err
	}
	if res.Degraded {
		s.log.Warn("progress write degraded to local cache", "user_id", userID.String(), "reason", res.Reason)
	}

	// Backstop, mirroring the integration pipeline's final stage: whatever
	// backend took the write, the warm copy reflects it immediately.
	if err := cacheIntegratedProfile(ctx, s.cache, p); err != nil {
		s.log.Warn("cache refresh after completion failed", "user_id", userID.String(), "error", err)
	}
	return p, nil
}

// apply mutates the profile's progress in place. It reports false when the
// quest was already completed today and nothing changed.
func (s *progressService) apply(p *types.IntegratedUserProfile, quest *types.Quest, today string, now time.Time) (bool, error) {
	prog := &p.Progress

	entry := -1
	for i := range prog.TodaysQuests {
		if prog.TodaysQuests[i].QuestID == quest.ID {
			entry = i
			break
		}
	}
	switch {
	case entry >= 0 && prog.TodaysQuests[entry].Done:
		return false, nil
	case entry >= 0:
		prog.TodaysQuests[entry].Done = true
	case len(prog.TodaysQuests) < profile.TodaysQuestLimit:
		// Completing a backlog quest pulls it into today's subset when
		// there is room.
		prog.TodaysQuests = append(prog.TodaysQuests, types.TodayQuest{QuestID: quest.ID, Done: true})
	default:
		return false, ErrTodayFull
	}

	done := 0
	for _, tq := range prog.TodaysQuests {
		if tq.Done {
			done++
		}
	}
	prog.TodaysProgress.Total = len(prog.TodaysQuests)
	prog.TodaysProgress.Completed = done
	if prog.TodaysProgress.Completed > prog.TodaysProgress.Total {
		prog.TodaysProgress.Completed = prog.TodaysProgress.Total
	}

	prog.Streak = nextStreak(prog.Streak, prog.LastCompletionDate, today)
	prog.LastCompletionDate = today

	weekday := int(localTime(p.Settings.Timezone, now).Weekday())
	prog.WeeklyPattern[weekday]++

	s.advanceSkills(p, quest)

	p.Revision = profile.NextRevision(p.Revision, now)
	p.UpdatedAt = now.UTC()
	return true, nil
}

// nextStreak implements the consecutive-day rule: the first completion of a
// day extends yesterday's streak or starts a new one; later completions the
// same day leave it alone.
func nextStreak(current int, lastDate, today string) int {
	switch lastDate {
	case today:
		return current
	case previousDate(today):
		return current + 1
	default:
		return 1
	}
}

func previousDate(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, -1).Format("2006-01-02")
}

// advanceSkills credits every atom the quest references with an equal share
// of that atom's quest coverage, so finishing all quests that touch an atom
// lands its progression at exactly 1.0.
func (s *progressService) advanceSkills(p *types.IntegratedUserProfile, quest *types.Quest) {
	if p.Progress.SkillProgression == nil {
		p.Progress.SkillProgression = map[string]float64{}
	}
	coverage := map[string]int{}
	for _, q := range p.Quests {
		for _, atomID := range q.SkillAtomIDs {
			coverage[atomID]++
		}
	}
	for _, atomID := range quest.SkillAtomIDs {
		n := coverage[atomID]
		if n == 0 {
			n = 1
		}
		v := p.Progress.SkillProgression[atomID] + 1.0/float64(n)
		if v > 1.0 {
			v = 1.0
		}
		p.Progress.SkillProgression[atomID] = v
	}
}

func (s *progressService) progressDoc(p *types.IntegratedUserProfile, today string, now time.Time) types.DailyProgressDoc {
	return types.DailyProgressDoc{
		Date:             today,
		GoalID:           p.ActiveGoalID,
		UserID:           p.UserID.String(),
		TodaysQuests:     p.Progress.TodaysQuests,
		Streak:           p.Progress.Streak,
		Completed:        p.Progress.TodaysProgress.Completed,
		Total:            p.Progress.TodaysProgress.Total,
		WeeklyPattern:    p.Progress.WeeklyPattern,
		SkillProgression: p.Progress.SkillProgression,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
}

func localTime(timezone string, now time.Time) time.Time {
	loc := time.UTC
	if timezone != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			loc = parsed
		}
	}
	return now.In(loc)
}
