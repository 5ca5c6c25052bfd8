package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
)

const (
	// conflictCandidateLimit bounds how many similar units are examined.
	conflictCandidateLimit = 20
	// conflictScoreThreshold filters candidates. Strictly greater-than, so a
	// unit scoring exactly 0.5 is not considered related to the claim.
	conflictScoreThreshold = 0.50
)

// FindContradictions searches the neighborhood of a claim for opposing
// evidence. Candidates are the stored units most similar to the claim; an
// opposing relation (refutes or contradicts) whose endpoints are both in the
// candidate set surfaces as a conflict. Because contradicting claims discuss
// the same subject, both sides of a real conflict score high against the
// query, so requiring both endpoints keeps unrelated disputes out.
func (e *Engine) FindContradictions(ctx context.Context, claim string) ([]apptype.ConflictResult, error) {
	if strings.TrimSpace(claim) == "" {
		return nil, fmt.Errorf("%w: claim cannot be empty", apptype.ErrValidation)
	}
	embedding, err := e.embedOne(ctx, claim)
	if err != nil {
		return nil, err
	}
	hits, err := e.db.SearchSimilar(ctx, embedding, conflictCandidateLimit, 0)
	if err != nil {
		return nil, err
	}

	// Retain candidates above the similarity threshold, keeping their rank.
	retained := make(map[string]int, len(hits))
	units := make(map[string]apptype.AtomicUnit, len(hits))
	var ids []string
	for i, h := range hits {
		if h.Score > conflictScoreThreshold {
			retained[h.Unit.ID] = i
			units[h.Unit.ID] = h.Unit
			ids = append(ids, h.Unit.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rels, err := e.db.OpposingRelations(ctx, ids)
	if err != nil {
		return nil, err
	}

	var conflicts []apptype.ConflictResult
	seen := make(map[string]bool)
	for _, rel := range rels {
		srcRank, srcOK := retained[rel.SourceID]
		tgtRank, tgtOK := retained[rel.TargetID]
		if !srcOK || !tgtOK || seen[rel.ID] {
			continue
		}
		seen[rel.ID] = true

		// Report the endpoint farther from the claim as the conflicting side;
		// the nearer one stands in for the claim itself.
		anchor, conflicting := units[rel.SourceID], units[rel.TargetID]
		if tgtRank < srcRank {
			anchor, conflicting = conflicting, anchor
		}
		explanation := fmt.Sprintf("%q is recorded as %q against %q", conflicting.Content, rel.Type, anchor.Content)
		if strings.TrimSpace(rel.Reasoning) != "" {
			explanation += ": " + rel.Reasoning
		}
		rel := rel
		conflicts = append(conflicts, apptype.ConflictResult{
			ConflictingUnit: conflicting,
			Relation:        &rel,
			Explanation:     explanation,
		})
	}
	e.logger.Debug("contradiction scan complete", "candidates", len(ids), "conflicts", len(conflicts))
	return conflicts, nil
}
