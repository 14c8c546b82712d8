package types

// SkillAtom is one unit of competency inside a goal's skill map. DependsOn
// references other atoms in the same map and forms a DAG; diamond
// dependencies are legal, cycles are not.
type SkillAtom struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"display_name"`
	Level          int      `json:"level"`
	DependsOn      []string `json:"depends_on"`
	EstimatedHours float64  `json:"estimated_hours"`
	Tag            string   `json:"tag"`
}
