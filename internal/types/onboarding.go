package types

// OnboardingAnswers is the raw questionnaire record captured when the user
// finishes onboarding. It is written once and never mutated; a new
// onboarding run supersedes the old record wholesale.
type OnboardingAnswers struct {
	GoalText                string   `json:"goal_text"`
	GoalCategory            string   `json:"goal_category"`
	Deadline                string   `json:"deadline"`
	TimeBudgetMinutesPerDay int      `json:"time_budget_minutes_per_day"`
	SessionLengthMinutes    int      `json:"session_length_minutes"`
	EnvironmentConstraints  []string `json:"environment_constraints"`
	ModalityPreferences     []string `json:"modality_preferences"`
	Memo                    string   `json:"memo"`
}
