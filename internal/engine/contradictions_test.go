package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
)

func TestFindContradictions(t *testing.T) {
	eng, _ := newTestEngine(t, map[string][]float32{
		"coffee is healthy":    {1, 0, 0, 0},
		"coffee is harmful":    {0.9, 0.1, 0, 0},
		"the sky is blue":      {0, 0, 1, 0},
		"is coffee good or not": {1, 0, 0, 0},
	})
	ctx := context.Background()

	healthy, _, err := eng.IngestHypothesis(ctx, "coffee is healthy", "", 1.0, "")
	require.NoError(t, err)
	harmful, _, err := eng.IngestHypothesis(ctx, "coffee is harmful", "", 1.0, "")
	require.NoError(t, err)
	sky, _, err := eng.IngestHypothesis(ctx, "the sky is blue", "", 1.0, "")
	require.NoError(t, err)

	rel, _, _, _, err := eng.ConnectPropositions(ctx, harmful.ID, healthy.ID, apptype.RelationContradicts, "opposite health outcomes", "")
	require.NoError(t, err)
	// An opposing edge touching an unrelated topic must not surface.
	_, _, _, _, err = eng.ConnectPropositions(ctx, sky.ID, healthy.ID, apptype.RelationRefutes, "noise", "")
	require.NoError(t, err)

	conflicts, err := eng.FindContradictions(ctx, "is coffee good or not")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, harmful.ID, conflicts[0].ConflictingUnit.ID)
	require.NotNil(t, conflicts[0].Relation)
	assert.Equal(t, rel.ID, conflicts[0].Relation.ID)
	assert.Contains(t, conflicts[0].Explanation, "opposite health outcomes")
}

func TestFindContradictionsNoneWhenOnlySupports(t *testing.T) {
	eng, _ := newTestEngine(t, map[string][]float32{
		"claim A": {1, 0, 0, 0},
		"claim B": {0.9, 0.1, 0, 0},
	})
	ctx := context.Background()

	a, _, err := eng.IngestHypothesis(ctx, "claim A", "", 1.0, "")
	require.NoError(t, err)
	b, _, err := eng.IngestHypothesis(ctx, "claim B", "", 1.0, "")
	require.NoError(t, err)
	_, _, _, _, err = eng.ConnectPropositions(ctx, a.ID, b.ID, apptype.RelationSupports, "agreement", "")
	require.NoError(t, err)

	conflicts, err := eng.FindContradictions(ctx, "claim A")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFindContradictionsThreshold(t *testing.T) {
	eng, _ := newTestEngine(t, map[string][]float32{
		"claim A":       {1, 0, 0, 0},
		"distant claim": {0, 0, 1, 0},
	})
	ctx := context.Background()

	a, _, err := eng.IngestHypothesis(ctx, "claim A", "", 1.0, "")
	require.NoError(t, err)
	distant, _, err := eng.IngestHypothesis(ctx, "distant claim", "", 1.0, "")
	require.NoError(t, err)
	// A real opposing edge, but one endpoint scores exactly 0.5 against the
	// claim and the threshold is strict.
	_, _, _, _, err = eng.ConnectPropositions(ctx, distant.ID, a.ID, apptype.RelationRefutes, "r", "")
	require.NoError(t, err)

	conflicts, err := eng.FindContradictions(ctx, "claim A")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFindContradictionsEmptyStore(t *testing.T) {
	eng, _ := newTestEngine(t, map[string][]float32{"claim": {1, 0, 0, 0}})

	conflicts, err := eng.FindContradictions(context.Background(), "claim")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFindContradictionsValidation(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	_, err := eng.FindContradictions(context.Background(), "  ")
	assert.True(t, errors.Is(err, apptype.ErrValidation))
}
