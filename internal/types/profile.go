package types

import (
	"time"

	"github.com/google/uuid"
)

const PreferenceProfileVersion = "v1"

// PreferenceProfile holds the normalized scheduling/behavioral preferences
// derived from OnboardingAnswers. It is a pure function of the answers and
// is recomputed, never merged, on every integration run.
type PreferenceProfile struct {
	Version                 string   `json:"version"`
	TimeBudgetMinutesPerDay int      `json:"time_budget_minutes_per_day"`
	PeakHours               []string `json:"peak_hours"`
	MotivationStyle         string   `json:"motivation_style"`
	DifficultyTolerance     string   `json:"difficulty_tolerance"`
	Pacing                  string   `json:"pacing"`
}

type ProfileSettings struct {
	NotificationsEnabled bool   `json:"notifications_enabled"`
	Timezone             string `json:"timezone"`
	DailyReminderHour    int    `json:"daily_reminder_hour"`
}

// TodayQuest is one entry of the bounded daily subset (at most three).
type TodayQuest struct {
	QuestID string `json:"quest_id"`
	Done    bool   `json:"done"`
}

type TodaysProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Progress is the mutable sub-record of an integrated profile. Invariants:
// every TodaysQuests entry references a quest present in the profile's
// Quests list, and TodaysProgress.Completed never exceeds Total.
type Progress struct {
	TodaysQuests       []TodayQuest       `json:"todays_quests"`
	Streak             int                `json:"streak"`
	LastCompletionDate string             `json:"last_completion_date,omitempty"`
	TodaysProgress     TodaysProgress     `json:"todays_progress"`
	WeeklyPattern      [7]int             `json:"weekly_pattern"`
	SkillProgression   map[string]float64 `json:"skill_progression"`
}

// IntegratedUserProfile is the aggregate root every caller consumes. Exactly
// one is current per user; integration supersedes it wholesale. Revision is
// a monotonically increasing counter bumped on every write so stale copies
// arriving from subscriptions can be discarded.
type IntegratedUserProfile struct {
	UserID             uuid.UUID         `json:"user_id"`
	Revision           int64             `json:"revision"`
	OnboardingComplete bool              `json:"onboarding_complete"`
	ActiveGoalID       string            `json:"active_goal_id"`
	Answers            OnboardingAnswers `json:"answers"`
	Preferences        PreferenceProfile `json:"preferences"`
	SkillAtoms         []SkillAtom       `json:"skill_atoms"`
	Quests             []Quest           `json:"quests"`
	Settings           ProfileSettings   `json:"settings"`
	Progress           Progress          `json:"progress"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// QuestByID returns the quest with the given id, or nil.
func (p *IntegratedUserProfile) QuestByID(id string) *Quest {
	for i := range p.Quests {
		if p.Quests[i].ID == id {
			return &p.Quests[i]
		}
	}
	return nil
}
