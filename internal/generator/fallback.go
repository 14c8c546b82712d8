package generator

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/types"
)

const fallbackTemplatesEnv = "FALLBACK_CONTENT_YAML"

//go:embed templates.yaml
var templatesFS embed.FS

// Hardcoded templates used when the YAML is missing or invalid. Field for
// field these mirror templates.yaml; the file exists so deployments can
// reword the static content without a rebuild.
var hardcodedAtoms = []atomTemplate{
	{
		ID:             "foundation",
		DisplayName:    "Foundations: {goal}",
		Level:          1,
		EstimatedHours: 8,
	},
	{
		ID:             "intermediate",
		DisplayName:    "Next steps: {goal}",
		Level:          2,
		DependsOn:      []string{"foundation"},
		EstimatedHours: 12,
	},
}

var hardcodedQuest = questTemplate{
	Title:            "Research the landscape: {goal}",
	Description:      "One focused session mapping what {goal} actually involves: the main sub-skills, where beginners stall, and which resources practitioners recommend.",
	Deliverable:      "A half-page note naming the three most useful resources found and why",
	EstimatedMinutes: 25,
	Difficulty:       2,
	Pattern:          types.QuestPatternResearch,
}

type yamlTemplates struct {
	Version  int `yaml:"version"`
	SkillMap struct {
		Atoms []atomTemplate `yaml:"atoms"`
	} `yaml:"skill_map"`
	Quest questTemplate `yaml:"quest"`
}

type atomTemplate struct {
	ID             string   `yaml:"id"`
	DisplayName    string   `yaml:"display_name"`
	Level          int      `yaml:"level"`
	DependsOn      []string `yaml:"depends_on"`
	EstimatedHours float64  `yaml:"estimated_hours"`
}

type questTemplate struct {
	Title            string `yaml:"title"`
	Description      string `yaml:"description"`
	Deliverable      string `yaml:"deliverable"`
	EstimatedMinutes int    `yaml:"estimated_minutes"`
	Difficulty       int    `yaml:"difficulty"`
	Pattern          string `yaml:"pattern"`
}

var templatesOnce sync.Once
var templatesCache *yamlTemplates
var templatesErr error

func currentTemplates(log *logger.Logger) *yamlTemplates {
	templatesOnce.Do(func() {
		templatesCache, templatesErr = loadTemplates()
	})
	if templatesErr != nil {
		if log != nil {
			log.Warn("fallback templates load failed; using hardcoded content", "error", templatesErr)
		}
		return nil
	}
	return templatesCache
}

func loadTemplates() (*yamlTemplates, error) {
	data, err := readTemplates()
	if err != nil {
		return nil, err
	}
	var tpl yamlTemplates
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, err
	}
	if err := validateTemplates(&tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func readTemplates() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(fallbackTemplatesEnv)); path != "" {
		return os.ReadFile(path)
	}
	return templatesFS.ReadFile("templates.yaml")
}

func validateTemplates(tpl *yamlTemplates) error {
	if tpl == nil {
		return errors.New("missing templates")
	}
	if len(tpl.SkillMap.Atoms) == 0 {
		return errors.New("no skill atoms defined")
	}
	ids := map[string]bool{}
	for _, a := range tpl.SkillMap.Atoms {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return errors.New("atom id is required")
		}
		if ids[id] {
			return fmt.Errorf("duplicate atom id: %s", id)
		}
		ids[id] = true
	}
	for _, a := range tpl.SkillMap.Atoms {
		for _, dep := range a.DependsOn {
			if !ids[strings.TrimSpace(dep)] {
				return fmt.Errorf("atom %s: unknown dependency %s", a.ID, dep)
			}
		}
	}
	q := tpl.Quest
	if strings.TrimSpace(q.Title) == "" {
		return errors.New("quest title is required")
	}
	if q.EstimatedMinutes <= 0 {
		return fmt.Errorf("quest estimated_minutes must be > 0, got %d", q.EstimatedMinutes)
	}
	if q.Difficulty < 1 || q.Difficulty > 5 {
		return fmt.Errorf("quest difficulty must be in [1,5], got %d", q.Difficulty)
	}
	if !types.ValidQuestPattern(q.Pattern) {
		return fmt.Errorf("unknown quest pattern: %s", q.Pattern)
	}
	return nil
}

// FallbackSkillMap renders the static skill map for the goal: a foundation
// atom and one dependent intermediate atom, tagged with the goal category.
// It never fails; this is the shunt target when skill-map generation does.
func FallbackSkillMap(log *logger.Logger, answers types.OnboardingAnswers) []types.SkillAtom {
	atoms := hardcodedAtoms
	if tpl := currentTemplates(log); tpl != nil {
		atoms = tpl.SkillMap.Atoms
	}

	category := strings.TrimSpace(answers.GoalCategory)
	if category == "" {
		category = "general"
	}

	out := make([]types.SkillAtom, 0, len(atoms))
	for _, a := range atoms {
		out = append(out, types.SkillAtom{
			ID:             a.ID,
			DisplayName:    render(a.DisplayName, answers),
			Level:          a.Level,
			DependsOn:      append([]string(nil), a.DependsOn...),
			EstimatedHours: a.EstimatedHours,
			Tag:            category,
		})
	}
	return out
}

// FallbackQuest renders the single static quest for the goal: a fixed
// 25-minute research quest. It references the first root atom of the given
// skill map when one exists, so the quest never dangles.
func FallbackQuest(log *logger.Logger, answers types.OnboardingAnswers, atoms []types.SkillAtom) types.Quest {
	tpl := hardcodedQuest
	if t := currentTemplates(log); t != nil {
		tpl = t.Quest
	}

	var refs []string
	for _, a := range atoms {
		if len(a.DependsOn) == 0 {
			refs = []string{a.ID}
			break
		}
	}

	return types.Quest{
		Title:            render(tpl.Title, answers),
		Description:      render(tpl.Description, answers),
		Deliverable:      render(tpl.Deliverable, answers),
		EstimatedMinutes: tpl.EstimatedMinutes,
		Difficulty:       tpl.Difficulty,
		Pattern:          tpl.Pattern,
		SkillAtomIDs:     refs,
	}
}

func render(s string, answers types.OnboardingAnswers) string {
	goal := strings.TrimSpace(answers.GoalText)
	category := strings.TrimSpace(answers.GoalCategory)
	if category == "" {
		category = "general"
	}
	s = strings.ReplaceAll(s, "{goal}", goal)
	s = strings.ReplaceAll(s, "{category}", category)
	return s
}
