package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/skillquest-backend/internal/types"
)

// ValidateAnswers rejects questionnaire records the pipeline cannot work
// with. Anything beyond these checks is tolerated; onboarding text is
// user-authored and intentionally loose.
func ValidateAnswers(a types.OnboardingAnswers) error {
	var errs []string
	if strings.TrimSpace(a.GoalText) == "" {
		errs = append(errs, "goal text is required")
	}
	if a.TimeBudgetMinutesPerDay < 0 {
		errs = append(errs, fmt.Sprintf("time budget must be >= 0, got %d", a.TimeBudgetMinutesPerDay))
	}
	if a.SessionLengthMinutes < 0 {
		errs = append(errs, fmt.Sprintf("session length must be >= 0, got %d", a.SessionLengthMinutes))
	}
	if d := strings.TrimSpace(a.Deadline); d != "" {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			errs = append(errs, fmt.Sprintf("deadline %q is not a YYYY-MM-DD date", a.Deadline))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid onboarding answers:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ValidateSkillAtoms performs all structural checks on a generated skill
// map: unique ids, no dangling dependencies, acyclic (Kahn's algorithm),
// and at least one root atom. Returns a combined error describing every
// problem found, or nil.
func ValidateSkillAtoms(atoms []types.SkillAtom) error {
	var errs []string

	if len(atoms) == 0 {
		errs = append(errs, "skill map is empty")
	}

	idSet := make(map[string]bool, len(atoms))
	for _, a := range atoms {
		if strings.TrimSpace(a.ID) == "" {
			errs = append(errs, "skill atom with empty id")
			continue
		}
		if idSet[a.ID] {
			errs = append(errs, fmt.Sprintf("duplicate skill atom id: %q", a.ID))
		}
		idSet[a.ID] = true
	}

	for _, a := range atoms {
		for _, dep := range a.DependsOn {
			if !idSet[dep] {
				errs = append(errs, fmt.Sprintf("skill atom %q references nonexistent dependency %q", a.ID, dep))
			}
		}
	}

	inDegree := make(map[string]int, len(atoms))
	adjList := make(map[string][]string)
	for _, a := range atoms {
		inDegree[a.ID] = len(a.DependsOn)
		for _, dep := range a.DependsOn {
			adjList[dep] = append(adjList[dep], a.ID)
		}
	}

	var queue []string
	for _, a := range atoms {
		if inDegree[a.ID] == 0 {
			queue = append(queue, a.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjList[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited < len(atoms) {
		var cycleNodes []string
		for _, a := range atoms {
			if inDegree[a.ID] > 0 {
				cycleNodes = append(cycleNodes, a.ID)
			}
		}
		errs = append(errs, fmt.Sprintf("cycle detected involving skill atoms: %s", strings.Join(cycleNodes, ", ")))
	}

	if len(atoms) > 0 {
		hasRoot := false
		for _, a := range atoms {
			if len(a.DependsOn) == 0 {
				hasRoot = true
				break
			}
		}
		if !hasRoot {
			errs = append(errs, "no root atoms found (at least one atom must have no dependencies)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("skill map validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ValidateQuests checks generated quests against the atoms they reference.
func ValidateQuests(quests []types.Quest, atoms []types.SkillAtom) error {
	var errs []string

	if len(quests) == 0 {
		errs = append(errs, "quest list is empty")
	}

	atomIDs := make(map[string]bool, len(atoms))
	for _, a := range atoms {
		atomIDs[a.ID] = true
	}

	for i, q := range quests {
		label := q.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if strings.TrimSpace(q.Title) == "" {
			errs = append(errs, fmt.Sprintf("quest %s has empty title", label))
		}
		if q.EstimatedMinutes <= 0 {
			errs = append(errs, fmt.Sprintf("quest %s: estimated minutes must be > 0, got %d", label, q.EstimatedMinutes))
		}
		if q.Difficulty < 1 || q.Difficulty > 5 {
			errs = append(errs, fmt.Sprintf("quest %s: difficulty must be in [1,5], got %d", label, q.Difficulty))
		}
		if !types.ValidQuestPattern(q.Pattern) {
			errs = append(errs, fmt.Sprintf("quest %s: unknown pattern %q", label, q.Pattern))
		}
		for _, sid := range q.SkillAtomIDs {
			if !atomIDs[sid] {
				errs = append(errs, fmt.Sprintf("quest %s references nonexistent skill atom %q", label, sid))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("quest validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
