package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
)

// setupTestDB opens a per-test in-memory database. The name must be unique
// per test because cache=shared makes same-named memory DBs one database.
func setupTestDB(t *testing.T) *DBManager {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	config := &Config{
		URL:           fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		EmbeddingDims: 4,
	}
	db, err := NewDBManager(config)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}

func TestCreateAndGetUnit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	unit, replayed, err := db.CreateUnit(ctx, "water boils at 100C at sea level", "doi:10.1000/1", 0.9, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEmpty(t, unit.ID)
	assert.False(t, unit.CreatedAt.IsZero())

	got, err := db.GetUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, unit.ID, got.ID)
	assert.Equal(t, "water boils at 100C at sea level", got.Content)
	assert.Equal(t, "doi:10.1000/1", got.Source)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, []float32{1, 0, 0, 0}, got.Embedding)
	assert.True(t, got.CreatedAt.Equal(unit.CreatedAt))
}

func TestGetUnitNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetUnit(context.Background(), "missing-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apptype.ErrNotFound))
}

func TestCreateUnitEmptyContent(t *testing.T) {
	db := setupTestDB(t)

	_, _, err := db.CreateUnit(context.Background(), "  ", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apptype.ErrValidation))
}

func TestCreateUnitIdempotency(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, replayed, err := db.CreateUnit(ctx, "claim A", "", 1.0, []float32{1, 0, 0, 0}, "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	// Same key replays the original unit even with different content.
	second, replayed, err := db.CreateUnit(ctx, "claim A retried with edits", "", 0.5, []float32{0, 1, 0, 0}, "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "claim A", second.Content)

	// The read-only resolver sees the same mapping.
	resolved, ok, err := db.ResolveIdempotentUnit(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.ID, resolved.ID)

	// Unknown key resolves to nothing.
	_, ok, err = db.ResolveIdempotentUnit(ctx, "key-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// No duplicate row was written.
	n, err := db.CountUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateRelation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a, _, err := db.CreateUnit(ctx, "claim A", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)
	b, _, err := db.CreateUnit(ctx, "claim B", "", 1.0, []float32{0, 1, 0, 0}, "")
	require.NoError(t, err)

	rel, replayed, err := db.CreateRelation(ctx, a.ID, b.ID, apptype.RelationSupports, "A provides evidence for B", "")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEmpty(t, rel.ID)
	assert.Equal(t, a.ID, rel.SourceID)
	assert.Equal(t, b.ID, rel.TargetID)
	assert.Equal(t, apptype.RelationSupports, rel.Type)

	out, err := db.RelationsFrom(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, rel.ID, out[0].ID)

	in, err := db.RelationsTo(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, rel.ID, in[0].ID)

	// Parallel edge with a different type is allowed.
	_, _, err = db.CreateRelation(ctx, a.ID, b.ID, apptype.RelationExtends, "A also builds on B", "")
	require.NoError(t, err)
	out, err = db.RelationsFrom(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestCreateRelationValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a, _, err := db.CreateUnit(ctx, "claim A", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)

	_, _, err = db.CreateRelation(ctx, a.ID, a.ID, apptype.RelationSupports, "self", "")
	assert.True(t, errors.Is(err, apptype.ErrValidation))

	_, _, err = db.CreateRelation(ctx, a.ID, "missing-id", apptype.RelationSupports, "dangling", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apptype.ErrNotFound))
	assert.Contains(t, err.Error(), "missing-id")

	_, _, err = db.CreateRelation(ctx, a.ID, a.ID, apptype.RelationType("disputes"), "bad type", "")
	assert.True(t, errors.Is(err, apptype.ErrValidation))
}

func TestCreateRelationIdempotency(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a, _, err := db.CreateUnit(ctx, "claim A", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)
	b, _, err := db.CreateUnit(ctx, "claim B", "", 1.0, []float32{0, 1, 0, 0}, "")
	require.NoError(t, err)

	first, replayed, err := db.CreateRelation(ctx, a.ID, b.ID, apptype.RelationRefutes, "B is wrong", "rel-key")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := db.CreateRelation(ctx, a.ID, b.ID, apptype.RelationRefutes, "B is wrong", "rel-key")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	out, err := db.RelationsFrom(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestCreateUnitConcurrentReplay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Racing callers with the same key must agree on one stored unit.
	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unit, _, err := db.CreateUnit(ctx, "racing claim", "", 1.0, []float32{1, 0, 0, 0}, "race-unit-key")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = unit.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	n, err := db.CountUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateRelationConcurrentReplay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a, _, err := db.CreateUnit(ctx, "claim A", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)
	b, _, err := db.CreateUnit(ctx, "claim B", "", 1.0, []float32{0, 1, 0, 0}, "")
	require.NoError(t, err)

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rel, _, err := db.CreateRelation(ctx, a.ID, b.ID, apptype.RelationImplies, "same intent", "race-rel-key")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = rel.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	out, err := db.RelationsFrom(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestSearchSimilarOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	exact, _, err := db.CreateUnit(ctx, "exact match", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)
	orthogonal, _, err := db.CreateUnit(ctx, "unrelated", "", 1.0, []float32{0, 1, 0, 0}, "")
	require.NoError(t, err)
	opposite, _, err := db.CreateUnit(ctx, "opposite", "", 1.0, []float32{-1, 0, 0, 0}, "")
	require.NoError(t, err)

	results, err := db.SearchSimilar(ctx, []float32{1, 0, 0, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, exact.ID, results[0].Unit.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, orthogonal.ID, results[1].Unit.ID)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)
	assert.Equal(t, opposite.ID, results[2].Unit.ID)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)

	// Limit truncates the ranking.
	top, err := db.SearchSimilar(ctx, []float32{1, 0, 0, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, exact.ID, top[0].Unit.ID)
}

func TestSearchSimilarTieBreaksOnInsertionOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, _, err := db.CreateUnit(ctx, "first twin", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)
	second, _, err := db.CreateUnit(ctx, "second twin", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)

	results, err := db.SearchSimilar(ctx, []float32{1, 0, 0, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, first.ID, results[0].Unit.ID)
	assert.Equal(t, second.ID, results[1].Unit.ID)
}

func TestSearchSimilarLimitMonotonic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Four units at distinct similarities to the query vector.
	for _, v := range [][]float32{
		{1, 0, 0, 0},
		{1, 1, 0, 0},
		{0, 1, 0, 0},
		{-1, 0, 0, 0},
	} {
		_, _, err := db.CreateUnit(ctx, fmt.Sprintf("claim %v", v), "", 1.0, v, "")
		require.NoError(t, err)
	}

	full, err := db.SearchSimilar(ctx, []float32{1, 0, 0, 0}, 4, 0)
	require.NoError(t, err)
	require.Len(t, full, 4)
	for i := 1; i < len(full); i++ {
		assert.LessOrEqual(t, full[i].Score, full[i-1].Score)
	}

	// Growing the limit only extends the ranking, never reorders the prefix.
	for limit := 1; limit <= 4; limit++ {
		results, err := db.SearchSimilar(ctx, []float32{1, 0, 0, 0}, limit, 0)
		require.NoError(t, err)
		require.Len(t, results, limit)
		for i := 0; i < limit; i++ {
			assert.Equal(t, full[i].Unit.ID, results[i].Unit.ID)
		}
	}
}

func TestSearchSimilarEmptyStore(t *testing.T) {
	db := setupTestDB(t)

	results, err := db.SearchSimilar(context.Background(), []float32{1, 0, 0, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListUnitsInsertionOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		u, _, err := db.CreateUnit(ctx, fmt.Sprintf("claim %d", i), "", 1.0, []float32{1, 0, 0, 0}, "")
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	units, err := db.ListUnits(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, units, 3)
	for i, u := range units {
		assert.Equal(t, ids[i], u.ID)
	}

	page, err := db.ListUnits(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestOpposingRelations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a, _, err := db.CreateUnit(ctx, "claim A", "", 1.0, []float32{1, 0, 0, 0}, "")
	require.NoError(t, err)
	b, _, err := db.CreateUnit(ctx, "claim B", "", 1.0, []float32{0, 1, 0, 0}, "")
	require.NoError(t, err)
	c, _, err := db.CreateUnit(ctx, "claim C", "", 1.0, []float32{0, 0, 1, 0}, "")
	require.NoError(t, err)

	refutes, _, err := db.CreateRelation(ctx, a.ID, b.ID, apptype.RelationRefutes, "", "")
	require.NoError(t, err)
	_, _, err = db.CreateRelation(ctx, b.ID, c.ID, apptype.RelationSupports, "", "")
	require.NoError(t, err)
	contradicts, _, err := db.CreateRelation(ctx, c.ID, a.ID, apptype.RelationContradicts, "", "")
	require.NoError(t, err)

	rels, err := db.OpposingRelations(ctx, []string{a.ID})
	require.NoError(t, err)
	require.Len(t, rels, 2)
	gotIDs := []string{rels[0].ID, rels[1].ID}
	assert.ElementsMatch(t, []string{refutes.ID, contradicts.ID}, gotIDs)

	// supports edges never show up, even when both endpoints are queried
	rels, err = db.OpposingRelations(ctx, []string{b.ID, c.ID})
	require.NoError(t, err)
	for _, r := range rels {
		assert.True(t, r.Type.Opposing())
	}

	rels, err = db.OpposingRelations(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestVectorToStringValidation(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.vectorToString([]float32{1, 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 dimensions")

	s, err := db.vectorToString(nil)
	require.NoError(t, err)
	assert.Equal(t, db.vectorZeroString(), s)
}

func TestExtractVectorRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	unit, _, err := db.CreateUnit(ctx, "round trip", "", 1.0, []float32{0.25, -0.5, 0.75, 1}, "")
	require.NoError(t, err)

	got, err := db.GetUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 0.75, 1}, got.Embedding)
}
