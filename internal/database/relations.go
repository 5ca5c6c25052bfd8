package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
	"github.com/claimgraph/mcp-claimgraph-go/internal/metrics"
)

const relationColumns = "id, source_id, target_id, relation_type, reasoning, created_at"

func scanRelation(scan func(dest ...any) error) (*apptype.Relation, error) {
	var rel apptype.Relation
	var relType, createdAt string
	if err := scan(&rel.ID, &rel.SourceID, &rel.TargetID, &relType, &rel.Reasoning, &createdAt); err != nil {
		return nil, err
	}
	rel.Type = apptype.RelationType(relType)
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for relation %s: %w", rel.ID, err)
	}
	rel.CreatedAt = ts
	return &rel, nil
}

// ResolveIdempotentRelation returns the relation previously stored under key,
// if any. Read-only.
func (dm *DBManager) ResolveIdempotentRelation(ctx context.Context, key string) (*apptype.Relation, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, nil
	}
	stmt, err := dm.getPreparedStmt(ctx, "SELECT entity_id FROM idempotency_keys WHERE key = ? AND kind = 'relation'")
	if err != nil {
		return nil, false, err
	}
	var relID string
	if err := stmt.QueryRowContext(ctx, key).Scan(&relID); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to resolve idempotency key: %w", err)
	}
	rel, err := dm.GetRelation(ctx, relID)
	if err != nil {
		return nil, false, err
	}
	return rel, true, nil
}

// CreateRelation inserts a typed directed edge between two existing units.
// Endpoint existence is verified inside the write transaction so the edge can
// never dangle. Idempotency keys behave as in CreateUnit.
func (dm *DBManager) CreateRelation(ctx context.Context, sourceID, targetID string, relType apptype.RelationType, reasoning, idemKey string) (*apptype.Relation, bool, error) {
	done := metrics.TimeOp("db_create_relation")
	success := false
	defer func() { done(success) }()

	if sourceID == "" || targetID == "" {
		return nil, false, fmt.Errorf("%w: relation endpoints cannot be empty", apptype.ErrValidation)
	}
	if !relType.Valid() {
		return nil, false, fmt.Errorf("%w: unknown relation type %q", apptype.ErrValidation, relType)
	}
	if sourceID == targetID {
		return nil, false, fmt.Errorf("%w: relation cannot link a unit to itself", apptype.ErrValidation)
	}

	dm.writeMu.Lock()
	defer dm.writeMu.Unlock()

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if idemKey != "" {
		var existingID string
		err := tx.QueryRowContext(ctx, "SELECT entity_id FROM idempotency_keys WHERE key = ? AND kind = 'relation'", idemKey).Scan(&existingID)
		if err == nil {
			row := tx.QueryRowContext(ctx, "SELECT "+relationColumns+" FROM relations WHERE id = ?", existingID)
			rel, sErr := scanRelation(row.Scan)
			if sErr != nil {
				return nil, false, fmt.Errorf("failed to load replayed relation: %w", sErr)
			}
			success = true
			return rel, true, nil
		}
		if err != sql.ErrNoRows {
			return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	// Verify both endpoints exist, naming whichever is missing
	rows, qerr := tx.QueryContext(ctx, "SELECT id FROM units WHERE id IN (?, ?)", sourceID, targetID)
	if qerr != nil {
		return nil, false, fmt.Errorf("failed to verify relation endpoints: %w", qerr)
	}
	found := make(map[string]bool, 2)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			found[id] = true
		}
	}
	rows.Close()
	for _, id := range []string{sourceID, targetID} {
		if !found[id] {
			return nil, false, fmt.Errorf("%w: unit %s", apptype.ErrNotFound, id)
		}
	}

	now := time.Now().UTC()
	rel := &apptype.Relation{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      relType,
		Reasoning: reasoning,
		CreatedAt: now,
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO relations (id, source_id, target_id, relation_type, reasoning, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rel.ID, rel.SourceID, rel.TargetID, string(rel.Type), rel.Reasoning, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert relation (%s -> %s): %w", sourceID, targetID, err)
	}

	if idemKey != "" {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO idempotency_keys (key, kind, entity_id, created_at) VALUES (?, 'relation', ?, ?)",
			idemKey, rel.ID, now.Format(time.RFC3339Nano))
		if err != nil {
			return nil, false, fmt.Errorf("failed to record idempotency key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit relation: %w", err)
	}
	success = true
	return rel, false, nil
}

// GetRelation retrieves a single relation by id.
func (dm *DBManager) GetRelation(ctx context.Context, id string) (*apptype.Relation, error) {
	stmt, err := dm.getPreparedStmt(ctx, "SELECT "+relationColumns+" FROM relations WHERE id = ?")
	if err != nil {
		return nil, err
	}
	row := stmt.QueryRowContext(ctx, id)
	rel, err := scanRelation(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: relation %s", apptype.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get relation %s: %w", id, err)
	}
	return rel, nil
}

func (dm *DBManager) queryRelations(ctx context.Context, sqlText string, args ...any) ([]apptype.Relation, error) {
	stmt, err := dm.getPreparedStmt(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	var rels []apptype.Relation
	for rows.Next() {
		rel, err := scanRelation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		rels = append(rels, *rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rels, nil
}

// RelationsFrom returns all outgoing relations of a unit, oldest first.
func (dm *DBManager) RelationsFrom(ctx context.Context, unitID string) ([]apptype.Relation, error) {
	return dm.queryRelations(ctx,
		"SELECT "+relationColumns+" FROM relations WHERE source_id = ? ORDER BY created_at, id", unitID)
}

// RelationsTo returns all incoming relations of a unit, oldest first.
func (dm *DBManager) RelationsTo(ctx context.Context, unitID string) ([]apptype.Relation, error) {
	return dm.queryRelations(ctx,
		"SELECT "+relationColumns+" FROM relations WHERE target_id = ? ORDER BY created_at, id", unitID)
}

// OpposingRelations returns refutes/contradicts edges touching any of the
// given unit ids, in either direction.
func (dm *DBManager) OpposingRelations(ctx context.Context, unitIDs []string) ([]apptype.Relation, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unitIDs)), ",")
	sqlText := fmt.Sprintf(
		"SELECT "+relationColumns+" FROM relations WHERE relation_type IN ('refutes', 'contradicts') AND (source_id IN (%s) OR target_id IN (%s)) ORDER BY created_at, id",
		placeholders, placeholders)
	args := make([]any, 0, len(unitIDs)*2)
	for _, id := range unitIDs {
		args = append(args, id)
	}
	for _, id := range unitIDs {
		args = append(args, id)
	}
	// Not cached: the IN-list shape varies with the candidate count
	rows, err := dm.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opposing relations: %w", err)
	}
	defer rows.Close()

	var rels []apptype.Relation
	for rows.Next() {
		rel, err := scanRelation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		rels = append(rels, *rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rels, nil
}
