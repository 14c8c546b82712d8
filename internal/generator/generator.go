package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/skillquest-backend/internal/clients/openai"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// Generation operations, carried on GenerationError for stage reporting.
const (
	OpSkillMap = "skill_map"
	OpQuests   = "quests"
)

// GenerationError wraps any failure of the external content generator. The
// integration pipeline treats it as a shunt signal: the stage degrades to
// template content instead of failing the run.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return "generation error"
	}
	return fmt.Sprintf("generate %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func generationErr(op string, err error) error {
	return &GenerationError{Op: op, Err: err}
}

// Generator produces goal-specific learning content. Implementations may
// call out; callers must be prepared for any call to fail and fall back to
// the static templates in this package.
type Generator interface {
	GenerateSkillMap(ctx context.Context, answers types.OnboardingAnswers) ([]types.SkillAtom, error)
	GenerateQuests(ctx context.Context, prefs types.PreferenceProfile, atoms []types.SkillAtom) ([]types.Quest, error)
}

const generateTimeout = 60 * time.Second

type openaiGenerator struct {
	client openai.Client
	log    *logger.Logger
}

func NewOpenAIGenerator(client openai.Client, baseLog *logger.Logger) (Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("openai client required")
	}
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &openaiGenerator{
		client: client,
		log:    baseLog.With("service", "ContentGenerator"),
	}, nil
}

func (g *openaiGenerator) GenerateSkillMap(ctx context.Context, answers types.OnboardingAnswers) ([]types.SkillAtom, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	system := "You are a curriculum designer. You decompose a learner's goal into small, dependency-ordered skill atoms."
	user := buildSkillMapPrompt(answers)

	obj, err := g.client.GenerateJSON(ctx, system, user, "skill_map", skillMapSchema())
	if err != nil {
		return nil, generationErr(OpSkillMap, err)
	}

	var payload struct {
		SkillAtoms []types.SkillAtom `json:"skill_atoms"`
	}
	if err := decodeInto(obj, &payload); err != nil {
		return nil, generationErr(OpSkillMap, err)
	}
	if len(payload.SkillAtoms) == 0 {
		return nil, generationErr(OpSkillMap, fmt.Errorf("empty skill map"))
	}
	return payload.SkillAtoms, nil
}

func (g *openaiGenerator) GenerateQuests(ctx context.Context, prefs types.PreferenceProfile, atoms []types.SkillAtom) ([]types.Quest, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	system := "You design small, concrete daily learning quests with a verifiable deliverable each."
	user := buildQuestsPrompt(prefs, atoms)

	obj, err := g.client.GenerateJSON(ctx, system, user, "quest_list", questsSchema())
	if err != nil {
		return nil, generationErr(OpQuests, err)
	}

	var payload struct {
		Quests []types.Quest `json:"quests"`
	}
	if err := decodeInto(obj, &payload); err != nil {
		return nil, generationErr(OpQuests, err)
	}
	if len(payload.Quests) == 0 {
		return nil, generationErr(OpQuests, fmt.Errorf("empty quest list"))
	}
	return payload.Quests, nil
}

// decodeInto remarshals the schema-validated object into a typed payload.
func decodeInto(obj map[string]any, out any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func buildSkillMapPrompt(a types.OnboardingAnswers) string {
	var b strings.Builder
	b.WriteString("Decompose this learning goal into 4-9 skill atoms.\n\n")
	b.WriteString("Goal: " + strings.TrimSpace(a.GoalText) + "\n")
	if strings.TrimSpace(a.GoalCategory) != "" {
		b.WriteString("Category: " + strings.TrimSpace(a.GoalCategory) + "\n")
	}
	if strings.TrimSpace(a.Deadline) != "" {
		b.WriteString("Deadline: " + strings.TrimSpace(a.Deadline) + "\n")
	}
	if a.SessionLengthMinutes > 0 {
		fmt.Fprintf(&b, "Typical session length: %d minutes\n", a.SessionLengthMinutes)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- ids are short snake_case strings, unique within the map\n")
	b.WriteString("- depends_on references ids from this map only; the result must be a DAG with at least one atom that has no dependencies\n")
	b.WriteString("- shared prerequisites (diamond shapes) are fine, cycles are not\n")
	b.WriteString("- level runs 1 (foundation) to 3 (advanced)\n")
	if strings.TrimSpace(a.GoalCategory) != "" {
		b.WriteString("- tag every atom with the category above\n")
	}
	return b.String()
}

func buildQuestsPrompt(prefs types.PreferenceProfile, atoms []types.SkillAtom) string {
	var b strings.Builder
	b.WriteString("Create 3-8 learning quests covering these skill atoms.\n\n")
	b.WriteString("Skill atoms:\n")
	for _, a := range atoms {
		fmt.Fprintf(&b, "- %s: %s (level %d)\n", a.ID, a.DisplayName, a.Level)
	}
	b.WriteString("\nLearner preferences:\n")
	fmt.Fprintf(&b, "- daily time budget: %d minutes\n", prefs.TimeBudgetMinutesPerDay)
	if prefs.DifficultyTolerance != "" {
		fmt.Fprintf(&b, "- difficulty tolerance: %s\n", prefs.DifficultyTolerance)
	}
	if prefs.Pacing != "" {
		fmt.Fprintf(&b, "- pacing: %s\n", prefs.Pacing)
	}
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- estimated_minutes per quest should fit the daily budget (aim for %d or less)\n", prefs.TimeBudgetMinutesPerDay)
	b.WriteString("- difficulty runs 1 (trivial) to 5 (stretch)\n")
	b.WriteString("- pattern is one of: research, drill, build, review, immerse, reflect\n")
	b.WriteString("- skill_atom_ids reference the atom ids listed above only\n")
	b.WriteString("- every quest names a concrete deliverable the learner can point at when done\n")
	b.WriteString("- leave id empty; identifiers are assigned on persist\n")
	return b.String()
}

func skillMapSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"skill_atoms"},
		"properties": map[string]any{
			"skill_atoms": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"id", "display_name", "level", "depends_on", "estimated_hours", "tag"},
					"properties": map[string]any{
						"id":              map[string]any{"type": "string"},
						"display_name":    map[string]any{"type": "string"},
						"level":           map[string]any{"type": "integer"},
						"depends_on":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"estimated_hours": map[string]any{"type": "number"},
						"tag":             map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func questsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"quests"},
		"properties": map[string]any{
			"quests": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"id", "title", "description", "deliverable", "estimated_minutes", "difficulty", "pattern", "skill_atom_ids"},
					"properties": map[string]any{
						"id":                map[string]any{"type": "string"},
						"title":             map[string]any{"type": "string"},
						"description":       map[string]any{"type": "string"},
						"deliverable":       map[string]any{"type": "string"},
						"estimated_minutes": map[string]any{"type": "integer"},
						"difficulty":        map[string]any{"type": "integer"},
						"pattern":           map[string]any{"type": "string", "enum": []string{"research", "drill", "build", "review", "immerse", "reflect"}},
						"skill_atom_ids":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
		},
	}
}
