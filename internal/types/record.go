package types

import "time"

// Remote-store record shapes. An IntegratedUserProfile is denormalized into
// four collections under the user's root: the profile document itself, one
// goal document carrying the skill map, one document per quest, and one
// progress document per local calendar day. Quest and progress documents
// carry the owning goal's identifier, assigned after the goal id is minted.

type ProfileDoc struct {
	UserID             string            `json:"user_id"`
	Revision           int64             `json:"revision"`
	OnboardingComplete bool              `json:"onboarding_complete"`
	ActiveGoalID       string            `json:"active_goal_id"`
	Answers            OnboardingAnswers `json:"answers"`
	Preferences        PreferenceProfile `json:"preferences"`
	Settings           ProfileSettings   `json:"settings"`
	// Streak state lives here rather than on the dated progress documents
	// so it survives day rollover, when no progress document exists yet.
	Streak             int       `json:"streak"`
	LastCompletionDate string    `json:"last_completion_date"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type GoalDoc struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Title      string      `json:"title"`
	Category   string      `json:"category"`
	Deadline   string      `json:"deadline"`
	SkillAtoms []SkillAtom `json:"skill_atoms"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type QuestDoc struct {
	ID               string    `json:"id"`
	GoalID           string    `json:"goal_id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Deliverable      string    `json:"deliverable"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	Difficulty       int       `json:"difficulty"`
	Pattern          string    `json:"pattern"`
	SkillAtomIDs     []string  `json:"skill_atom_ids"`
	Order            int       `json:"order"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DailyProgressDoc is keyed by the user's local calendar date (YYYY-MM-DD).
type DailyProgressDoc struct {
	Date             string             `json:"date"`
	GoalID           string             `json:"goal_id"`
	UserID           string             `json:"user_id"`
	TodaysQuests     []TodayQuest       `json:"todays_quests"`
	Streak           int                `json:"streak"`
	Completed        int                `json:"completed"`
	Total            int                `json:"total"`
	WeeklyPattern    [7]int             `json:"weekly_pattern"`
	SkillProgression map[string]float64 `json:"skill_progression"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// RecordBundle groups the denormalized documents of one integration run so
// they can travel through persistence and assembly as a unit.
type RecordBundle struct {
	Profile  ProfileDoc
	Goal     GoalDoc
	Quests   []QuestDoc
	Progress DailyProgressDoc
}
