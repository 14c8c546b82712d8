package profile

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/types"
)

// Assemble builds the aggregate root from a normalized record bundle. It
// never re-reads a store: integration assembles from the in-memory bundle
// so the caller gets a full profile even when persistence degraded, and the
// load path assembles from whatever documents it managed to read.
//
// The §3-style invariants are enforced here by construction: today's quest
// entries referencing quests missing from the bundle are dropped (a remote
// writer may have deleted a quest under us), and the completed count is
// clamped to the total.
func Assemble(b types.RecordBundle) (*types.IntegratedUserProfile, error) {
	uid, err := uuid.Parse(b.Profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("assemble: bad user id %q: %w", b.Profile.UserID, err)
	}

	quests := make([]types.Quest, 0, len(b.Quests))
	questIDs := make(map[string]bool, len(b.Quests))
	for _, qd := range b.Quests {
		quests = append(quests, types.Quest{
			ID:               qd.ID,
			Title:            qd.Title,
			Description:      qd.Description,
			Deliverable:      qd.Deliverable,
			EstimatedMinutes: qd.EstimatedMinutes,
			Difficulty:       qd.Difficulty,
			Pattern:          qd.Pattern,
			SkillAtomIDs:     qd.SkillAtomIDs,
		})
		questIDs[qd.ID] = true
	}

	todays := make([]types.TodayQuest, 0, len(b.Progress.TodaysQuests))
	for _, tq := range b.Progress.TodaysQuests {
		if !questIDs[tq.QuestID] {
			continue
		}
		todays = append(todays, tq)
	}

	completed := b.Progress.Completed
	total := b.Progress.Total
	if total < len(todays) {
		total = len(todays)
	}
	if completed > total {
		completed = total
	}

	progression := b.Progress.SkillProgression
	if progression == nil {
		progression = map[string]float64{}
	}

	// Streak continuity is carried on the profile document; a dated progress
	// document holds at most the same value, except in the window where the
	// profile partial-update lost a race, so take the larger.
	streak := b.Profile.Streak
	if b.Progress.Streak > streak {
		streak = b.Progress.Streak
	}

	goalID := b.Goal.ID
	if goalID == "" {
		goalID = b.Profile.ActiveGoalID
	}

	return &types.IntegratedUserProfile{
		UserID:             uid,
		Revision:           b.Profile.Revision,
		OnboardingComplete: b.Profile.OnboardingComplete,
		ActiveGoalID:       goalID,
		Answers:            b.Profile.Answers,
		Preferences:        b.Profile.Preferences,
		SkillAtoms:         b.Goal.SkillAtoms,
		Quests:             quests,
		Settings:           b.Profile.Settings,
		Progress: types.Progress{
			TodaysQuests:       todays,
			Streak:             streak,
			LastCompletionDate: b.Profile.LastCompletionDate,
			TodaysProgress:     types.TodaysProgress{Completed: completed, Total: total},
			WeeklyPattern:      b.Progress.WeeklyPattern,
			SkillProgression:   progression,
		},
		CreatedAt: b.Profile.CreatedAt,
		UpdatedAt: b.Profile.UpdatedAt,
	}, nil
}
