package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/types"
)

// TodaysQuestLimit bounds the daily quest subset.
const TodaysQuestLimit = 3

type NormalizeInput struct {
	UserID      uuid.UUID
	Answers     types.OnboardingAnswers
	Preferences types.PreferenceProfile
	SkillAtoms  []types.SkillAtom
	Quests      []types.Quest
	Settings    types.ProfileSettings
	Revision    int64
	Now         time.Time
}

// Normalize denormalizes one integration run into the remote record shape.
// The goal id is minted here and back-filled into every quest document and
// the progress document before anything is persisted; quests and progress
// are meaningless without that linkage.
func Normalize(in NormalizeInput) types.RecordBundle {
	uid := in.UserID.String()
	goalID := NewGoalID(in.Now)

	questDocs := make([]types.QuestDoc, 0, len(in.Quests))
	for i, q := range in.Quests {
		id := q.ID
		if id == "" {
			id = NewQuestID(in.Now, i)
		}
		questDocs = append(questDocs, types.QuestDoc{
			ID:               id,
			GoalID:           goalID,
			UserID:           uid,
			Title:            q.Title,
			Description:      q.Description,
			Deliverable:      q.Deliverable,
			EstimatedMinutes: q.EstimatedMinutes,
			Difficulty:       q.Difficulty,
			Pattern:          q.Pattern,
			SkillAtomIDs:     q.SkillAtomIDs,
			Order:            i,
			CreatedAt:        in.Now,
			UpdatedAt:        in.Now,
		})
	}

	progress := newDailyProgress(uid, goalID, questDocs, in.SkillAtoms, in.Settings, in.Now)

	return types.RecordBundle{
		Profile: types.ProfileDoc{
			UserID:             uid,
			Revision:           in.Revision,
			OnboardingComplete: true,
			ActiveGoalID:       goalID,
			Answers:            in.Answers,
			Preferences:        in.Preferences,
			Settings:           in.Settings,
			CreatedAt:          in.Now,
			UpdatedAt:          in.Now,
		},
		Goal: types.GoalDoc{
			ID:         goalID,
			UserID:     uid,
			Title:      in.Answers.GoalText,
			Category:   in.Answers.GoalCategory,
			Deadline:   in.Answers.Deadline,
			SkillAtoms: in.SkillAtoms,
			CreatedAt:  in.Now,
			UpdatedAt:  in.Now,
		},
		Quests:   questDocs,
		Progress: progress,
	}
}

// SynthesizeDailyProgress builds the in-memory progress record used when no
// dated progress document exists yet: the first quests (up to the daily
// limit) pending, all counters zeroed. Callers must not persist it; the
// first completion write creates the real document.
func SynthesizeDailyProgress(userID, goalID string, quests []types.QuestDoc, atoms []types.SkillAtom, settings types.ProfileSettings, now time.Time) types.DailyProgressDoc {
	return newDailyProgress(userID, goalID, quests, atoms, settings, now)
}

func newDailyProgress(userID, goalID string, quests []types.QuestDoc, atoms []types.SkillAtom, settings types.ProfileSettings, now time.Time) types.DailyProgressDoc {
	todays := make([]types.TodayQuest, 0, TodaysQuestLimit)
	for _, q := range quests {
		if len(todays) == TodaysQuestLimit {
			break
		}
		todays = append(todays, types.TodayQuest{QuestID: q.ID})
	}

	progression := make(map[string]float64, len(atoms))
	for _, a := range atoms {
		progression[a.ID] = 0
	}

	return types.DailyProgressDoc{
		Date:             LocalDate(settings.Timezone, now),
		GoalID:           goalID,
		UserID:           userID,
		TodaysQuests:     todays,
		Streak:           0,
		Completed:        0,
		Total:            len(todays),
		SkillProgression: progression,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
