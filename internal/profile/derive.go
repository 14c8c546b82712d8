package profile

import (
	"strings"

	"github.com/yungbote/skillquest-backend/internal/types"
)

const (
	MotivationDeadlineDriven = "deadline_driven"
	MotivationSelfPaced      = "self_paced"

	ToleranceLow    = "low"
	ToleranceMedium = "medium"
	ToleranceHigh   = "high"

	PacingLight     = "light"
	PacingSteady    = "steady"
	PacingIntensive = "intensive"

	PeakMorning = "morning"
	PeakMidday  = "midday"
	PeakEvening = "evening"
)

const defaultTimeBudgetMinutes = 30

// DerivePreferences computes the preference profile from raw answers. It is
// a pure function: same answers, same profile, every run. Nothing here may
// call out or consult the clock.
func DerivePreferences(a types.OnboardingAnswers) types.PreferenceProfile {
	budget := a.TimeBudgetMinutesPerDay
	if budget <= 0 {
		budget = defaultTimeBudgetMinutes
	}

	return types.PreferenceProfile{
		Version:                 types.PreferenceProfileVersion,
		TimeBudgetMinutesPerDay: budget,
		PeakHours:               derivePeakHours(a.EnvironmentConstraints),
		MotivationStyle:         deriveMotivation(a.Deadline),
		DifficultyTolerance:     deriveTolerance(a.SessionLengthMinutes),
		Pacing:                  derivePacing(budget),
	}
}

// derivePeakHours keys off the wording of environment constraints; free-form
// entries like "quiet mornings" or "only after work" land in the matching
// slot. No signal defaults to evening, the most common study window.
func derivePeakHours(constraints []string) []string {
	seen := map[string]bool{}
	var hours []string
	add := func(h string) {
		if !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
	}
	for _, c := range constraints {
		lc := strings.ToLower(c)
		switch {
		case strings.Contains(lc, "morning"), strings.Contains(lc, "commute"):
			add(PeakMorning)
		case strings.Contains(lc, "lunch"), strings.Contains(lc, "midday"), strings.Contains(lc, "noon"):
			add(PeakMidday)
		case strings.Contains(lc, "evening"), strings.Contains(lc, "night"), strings.Contains(lc, "after work"):
			add(PeakEvening)
		}
	}
	if len(hours) == 0 {
		hours = []string{PeakEvening}
	}
	return hours
}

func deriveMotivation(deadline string) string {
	if strings.TrimSpace(deadline) != "" {
		return MotivationDeadlineDriven
	}
	return MotivationSelfPaced
}

func deriveTolerance(sessionMinutes int) string {
	switch {
	case sessionMinutes > 0 && sessionMinutes < 15:
		return ToleranceLow
	case sessionMinutes > 45:
		return ToleranceHigh
	default:
		return ToleranceMedium
	}
}

func derivePacing(budgetMinutes int) string {
	switch {
	case budgetMinutes < 20:
		return PacingLight
	case budgetMinutes > 60:
		return PacingIntensive
	default:
		return PacingSteady
	}
}
