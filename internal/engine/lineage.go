package engine

import (
	"context"
	"fmt"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
)

// FindLineage resolves both concepts to their closest stored units and walks
// the directed graph from start to end via breadth-first search, so the
// returned path is the shortest one. Edge exploration follows insertion order,
// which keeps the chosen path deterministic when several shortest paths exist.
//
// maxDepth > 0 caps the traversal at that many edges; zero or negative means
// unbounded, in which case the visited set alone terminates the walk and a
// no-path result is only returned once every reachable unit was explored.
func (e *Engine) FindLineage(ctx context.Context, startConcept, endConcept string, maxDepth int) ([]apptype.LineageStep, error) {
	start, err := e.resolveConcept(ctx, startConcept)
	if err != nil {
		return nil, err
	}
	end, err := e.resolveConcept(ctx, endConcept)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("lineage endpoints resolved", "start_id", start.ID, "end_id", end.ID)

	if start.ID == end.ID {
		return []apptype.LineageStep{{Unit: *start}}, nil
	}

	// BFS over outgoing relations. parent records the edge used to first
	// reach each node, which is enough to rebuild the path.
	type parentEdge struct {
		fromID   string
		relation apptype.Relation
	}
	visited := map[string]bool{start.ID: true}
	parent := make(map[string]parentEdge)
	frontier := []string{start.ID}

	found := false
	for depth := 0; (maxDepth <= 0 || depth < maxDepth) && len(frontier) > 0 && !found; depth++ {
		var next []string
		for _, id := range frontier {
			rels, err := e.db.RelationsFrom(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if visited[rel.TargetID] {
					continue
				}
				visited[rel.TargetID] = true
				parent[rel.TargetID] = parentEdge{fromID: id, relation: rel}
				if rel.TargetID == end.ID {
					found = true
					break
				}
				next = append(next, rel.TargetID)
			}
			if found {
				break
			}
		}
		frontier = next
	}

	if !found {
		return nil, fmt.Errorf("%w: no directed path from %q to %q", apptype.ErrNoPath, startConcept, endConcept)
	}

	// Rebuild the id chain end-to-start, then emit steps start-to-end.
	var chain []string
	for id := end.ID; id != start.ID; id = parent[id].fromID {
		chain = append(chain, id)
	}
	chain = append(chain, start.ID)

	steps := make([]apptype.LineageStep, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		unit, err := e.db.GetUnit(ctx, chain[i])
		if err != nil {
			return nil, err
		}
		step := apptype.LineageStep{Unit: *unit}
		if i > 0 {
			edge := parent[chain[i-1]].relation
			step.RelationToNext = &edge
		}
		steps = append(steps, step)
	}
	return steps, nil
}
