package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
	"github.com/claimgraph/mcp-claimgraph-go/internal/metrics"
)

// SearchSimilar ranks stored units by cosine similarity against the query
// embedding. Scores are normalized to [0,1] via score = 1 - distance/2 where
// distance is libSQL's cosine distance. Ties break on created_at then rowid,
// so earlier inserts rank first.
func (dm *DBManager) SearchSimilar(ctx context.Context, embedding []float32, limit, offset int) ([]apptype.ScoredUnit, error) {
	done := metrics.TimeOp("db_search_similar")
	success := false
	defer func() { done(success) }()

	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: search embedding cannot be empty", apptype.ErrValidation)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: search limit must be positive", apptype.ErrValidation)
	}
	if offset < 0 {
		offset = 0
	}
	vectorString, err := dm.vectorToString(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to convert search embedding: %w", err)
	}

	dm.detectCapabilities(ctx)
	useTopK := dm.hasVectorTopK()

	var rows *sql.Rows
	if useTopK {
		k := limit + offset
		topK := `WITH vt AS (
            SELECT id FROM vector_top_k('idx_units_embedding', vector32(?), ?)
        )
        SELECT u.id, u.content, u.source, u.confidence, u.embedding, u.created_at,
               vector_distance_cos(u.embedding, vector32(?)) as distance
        FROM vt JOIN units u ON u.rowid = vt.id
        WHERE u.embedding IS NOT NULL
        ORDER BY distance ASC, u.created_at ASC, u.rowid ASC
        LIMIT ? OFFSET ?`
		stmt, perr := dm.getPreparedStmt(ctx, topK)
		if perr != nil {
			return nil, perr
		}
		rows, err = stmt.QueryContext(ctx, vectorString, k, vectorString, limit, offset)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "no such function: vector_top_k") {
			dm.capMu.Lock()
			dm.caps.vectorTopK = false
			dm.capMu.Unlock()
			useTopK = false
		} else if err != nil {
			return nil, fmt.Errorf("failed ANN search: %w", err)
		}
	}
	if !useTopK {
		exact := `SELECT u.id, u.content, u.source, u.confidence, u.embedding, u.created_at,
               vector_distance_cos(u.embedding, vector32(?)) as distance
        FROM units u
        WHERE u.embedding IS NOT NULL
        ORDER BY distance ASC, u.created_at ASC, u.rowid ASC
        LIMIT ? OFFSET ?`
		stmt, perr := dm.getPreparedStmt(ctx, exact)
		if perr != nil {
			return nil, perr
		}
		rows, err = stmt.QueryContext(ctx, vectorString, limit, offset)
	}
	if err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "no such function: vector_distance_cos") || strings.Contains(low, "no such function: vector32") {
			return nil, fmt.Errorf("vector search functions are unavailable in this libSQL build")
		}
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []apptype.ScoredUnit
	for rows.Next() {
		var unit apptype.AtomicUnit
		var embeddingBytes []byte
		var createdAt string
		var distance float64
		if err := rows.Scan(&unit.ID, &unit.Content, &unit.Source, &unit.Confidence, &embeddingBytes, &createdAt, &distance); err != nil {
			log.Printf("Warning: Failed to scan search result row: %v", err)
			continue
		}
		vector, err := dm.ExtractVector(embeddingBytes)
		if err != nil {
			log.Printf("Warning: Failed to extract vector for unit %q: %v", unit.ID, err)
			continue
		}
		unit.Embedding = vector
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			log.Printf("Warning: Failed to parse created_at for unit %q: %v", unit.ID, err)
			continue
		}
		unit.CreatedAt = ts
		results = append(results, apptype.ScoredUnit{
			Unit:  unit,
			Score: 1.0 - distance/2.0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	success = true
	return results, nil
}
