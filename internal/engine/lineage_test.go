package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
)

// seedChain ingests A -> B -> C with orthogonal embeddings so concept
// resolution is unambiguous.
func seedChain(t *testing.T, eng *Engine) (a, b, c *apptype.AtomicUnit) {
	t.Helper()
	ctx := context.Background()
	var err error
	a, _, err = eng.IngestHypothesis(ctx, "claim A", "", 1.0, "")
	require.NoError(t, err)
	b, _, err = eng.IngestHypothesis(ctx, "claim B", "", 1.0, "")
	require.NoError(t, err)
	c, _, err = eng.IngestHypothesis(ctx, "claim C", "", 1.0, "")
	require.NoError(t, err)
	_, _, _, _, err = eng.ConnectPropositions(ctx, a.ID, b.ID, apptype.RelationExtends, "B builds on A", "")
	require.NoError(t, err)
	_, _, _, _, err = eng.ConnectPropositions(ctx, b.ID, c.ID, apptype.RelationSupports, "B backs C", "")
	require.NoError(t, err)
	return a, b, c
}

func chainVectors() map[string][]float32 {
	return map[string][]float32{
		"claim A":   {1, 0, 0, 0},
		"claim B":   {0, 1, 0, 0},
		"claim C":   {0, 0, 1, 0},
		"concept A": {1, 0, 0, 0},
		"concept B": {0, 1, 0, 0},
		"concept C": {0, 0, 1, 0},
	}
}

func TestFindLineage(t *testing.T) {
	eng, _ := newTestEngine(t, chainVectors())
	a, b, c := seedChain(t, eng)

	path, err := eng.FindLineage(context.Background(), "concept A", "concept C", 0)
	require.NoError(t, err)
	require.Len(t, path, 3)

	assert.Equal(t, a.ID, path[0].Unit.ID)
	require.NotNil(t, path[0].RelationToNext)
	assert.Equal(t, apptype.RelationExtends, path[0].RelationToNext.Type)

	assert.Equal(t, b.ID, path[1].Unit.ID)
	require.NotNil(t, path[1].RelationToNext)
	assert.Equal(t, apptype.RelationSupports, path[1].RelationToNext.Type)

	assert.Equal(t, c.ID, path[2].Unit.ID)
	assert.Nil(t, path[2].RelationToNext)
}

func TestFindLineageDirected(t *testing.T) {
	eng, _ := newTestEngine(t, chainVectors())
	seedChain(t, eng)

	// Edges point A -> C only; the reverse direction has no path.
	_, err := eng.FindLineage(context.Background(), "concept C", "concept A", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apptype.ErrNoPath))
}

func TestFindLineageSameUnit(t *testing.T) {
	eng, _ := newTestEngine(t, chainVectors())
	a, _, _ := seedChain(t, eng)

	path, err := eng.FindLineage(context.Background(), "concept A", "claim A", 0)
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, a.ID, path[0].Unit.ID)
	assert.Nil(t, path[0].RelationToNext)
}

func TestFindLineageEmptyStore(t *testing.T) {
	eng, _ := newTestEngine(t, chainVectors())

	_, err := eng.FindLineage(context.Background(), "concept A", "concept C", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apptype.ErrNoMatch))
}

func TestFindLineagePicksShortestPath(t *testing.T) {
	eng, _ := newTestEngine(t, chainVectors())
	ctx := context.Background()
	a, _, c := seedChain(t, eng)

	// Add a direct shortcut A -> C; BFS must prefer it over A -> B -> C.
	_, _, _, _, err := eng.ConnectPropositions(ctx, a.ID, c.ID, apptype.RelationImplies, "direct", "")
	require.NoError(t, err)

	path, err := eng.FindLineage(ctx, "concept A", "concept C", 0)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, a.ID, path[0].Unit.ID)
	assert.Equal(t, c.ID, path[1].Unit.ID)
	require.NotNil(t, path[0].RelationToNext)
	assert.Equal(t, apptype.RelationImplies, path[0].RelationToNext.Type)
}

func TestFindLineageUnboundedDepth(t *testing.T) {
	// A 12-edge chain: with no explicit depth cap the walk must keep going
	// until the reachable set is exhausted, so a deep target is still found.
	eng, _ := newTestEngine(t, map[string][]float32{
		"claim 00": {1, 0, 0, 0},
		"claim 12": {0, 1, 0, 0},
	})
	ctx := context.Background()

	ids := make([]string, 13)
	for i := range ids {
		unit, _, err := eng.IngestHypothesis(ctx, fmt.Sprintf("claim %02d", i), "", 1.0, "")
		require.NoError(t, err)
		ids[i] = unit.ID
	}
	for i := 0; i < len(ids)-1; i++ {
		_, _, _, _, err := eng.ConnectPropositions(ctx, ids[i], ids[i+1], apptype.RelationExtends, "next step", "")
		require.NoError(t, err)
	}

	path, err := eng.FindLineage(ctx, "claim 00", "claim 12", 0)
	require.NoError(t, err)
	require.Len(t, path, 13)
	assert.Equal(t, ids[0], path[0].Unit.ID)
	assert.Equal(t, ids[12], path[12].Unit.ID)
}

func TestFindLineageDepthBound(t *testing.T) {
	eng, _ := newTestEngine(t, chainVectors())
	seedChain(t, eng)

	_, err := eng.FindLineage(context.Background(), "concept A", "concept C", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apptype.ErrNoPath))
}
