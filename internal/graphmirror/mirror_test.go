package graphmirror

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// A nil client means the projection is disabled; every operation must be a
// silent no-op so callers never need to branch.
func TestNilClientIsNoOp(t *testing.T) {
	atoms := []types.SkillAtom{{ID: "a1", DisplayName: "A", Level: 1}}

	if err := MirrorSkillMap(context.Background(), nil, nil, uuid.New(), "goal_1", atoms); err != nil {
		t.Fatalf("MirrorSkillMap with nil client: %v", err)
	}
	if err := RemoveUser(context.Background(), nil, uuid.New()); err != nil {
		t.Fatalf("RemoveUser with nil client: %v", err)
	}

	var empty Client
	if err := MirrorSkillMap(context.Background(), &empty, nil, uuid.New(), "goal_1", atoms); err != nil {
		t.Fatalf("MirrorSkillMap with empty client: %v", err)
	}
}
