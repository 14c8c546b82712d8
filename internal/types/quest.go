package types

// Quest learning-activity patterns.
const (
	QuestPatternResearch = "research"
	QuestPatternDrill    = "drill"
	QuestPatternBuild    = "build"
	QuestPatternReview   = "review"
	QuestPatternImmerse  = "immerse"
	QuestPatternReflect  = "reflect"
)

// Quest is an actionable unit of work. Difficulty runs 1 (trivial) to 5
// (stretch). SkillAtomIDs may be empty for warm-up style quests.
type Quest struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Deliverable      string   `json:"deliverable"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Difficulty       int      `json:"difficulty"`
	Pattern          string   `json:"pattern"`
	SkillAtomIDs     []string `json:"skill_atom_ids"`
}

func ValidQuestPattern(p string) bool {
	switch p {
	case QuestPatternResearch, QuestPatternDrill, QuestPatternBuild,
		QuestPatternReview, QuestPatternImmerse, QuestPatternReflect:
		return true
	default:
		return false
	}
}
