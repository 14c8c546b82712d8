package graphmirror

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// MirrorSkillMap projects a goal's skill atoms and their DEPENDS_ON edges
// into the graph. A nil client is a no-op. Atom ids are unique per goal, not
// globally, so nodes are keyed on (id, goal_id).
func MirrorSkillMap(ctx context.Context, client *Client, log *logger.Logger, userID uuid.UUID, goalID string, atoms []types.SkillAtom) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if userID == uuid.Nil || goalID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	atomRows := make([]map[string]any, 0, len(atoms))
	edgeRows := make([]map[string]any, 0, len(atoms))
	for _, a := range atoms {
		atomRows = append(atomRows, map[string]any{
			"id":              a.ID,
			"display_name":    a.DisplayName,
			"level":           int64(a.Level),
			"estimated_hours": a.EstimatedHours,
			"tag":             a.Tag,
		})
		for _, dep := range a.DependsOn {
			edgeRows = append(edgeRows, map[string]any{"from": a.ID, "to": dep})
		}
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("graph schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if res, err := tx.Run(ctx, `
MERGE (u:User {id: $user_id})
MERGE (g:Goal {id: $goal_id})
SET g.synced_at = $synced_at
MERGE (u)-[:PURSUES]->(g)
`, map[string]any{"user_id": userID.String(), "goal_id": goalID, "synced_at": now}); err != nil {
			return nil, err
		} else if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(atomRows) == 0 {
			return nil, nil
		}

		if res, err := tx.Run(ctx, `
MATCH (g:Goal {id: $goal_id})
UNWIND $rows AS r
MERGE (a:SkillAtom {id: r.id, goal_id: $goal_id})
SET a.display_name = r.display_name,
    a.level = r.level,
    a.estimated_hours = r.estimated_hours,
    a.tag = r.tag,
    a.synced_at = $synced_at
MERGE (g)-[:CONTAINS]->(a)
`, map[string]any{"goal_id": goalID, "rows": atomRows, "synced_at": now}); err != nil {
			return nil, err
		} else if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(edgeRows) == 0 {
			return nil, nil
		}

		res, err := tx.Run(ctx, `
UNWIND $edges AS e
MATCH (a:SkillAtom {id: e.from, goal_id: $goal_id})
MATCH (b:SkillAtom {id: e.to, goal_id: $goal_id})
MERGE (a)-[:DEPENDS_ON]->(b)
`, map[string]any{"goal_id": goalID, "edges": edgeRows})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// RemoveUser detaches and deletes the user's projection subgraph. Called on
// profile reset; a nil client is a no-op.
func RemoveUser(ctx context.Context, client *Client, userID uuid.UUID) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if userID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (u:User {id: $user_id})
OPTIONAL MATCH (u)-[:PURSUES]->(g:Goal)
OPTIONAL MATCH (g)-[:CONTAINS]->(a:SkillAtom)
DETACH DELETE a, g, u
`, map[string]any{"user_id": userID.String()})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}
