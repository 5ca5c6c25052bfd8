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

const unitColumns = "id, content, source, confidence, embedding, created_at"

// scanUnit reads one units row into an AtomicUnit. Works for both *sql.Row
// and *sql.Rows via the scanner argument.
func (dm *DBManager) scanUnit(scan func(dest ...any) error) (*apptype.AtomicUnit, error) {
	var unit apptype.AtomicUnit
	var embedding []byte
	var createdAt string
	if err := scan(&unit.ID, &unit.Content, &unit.Source, &unit.Confidence, &embedding, &createdAt); err != nil {
		return nil, err
	}
	vec, err := dm.ExtractVector(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to extract embedding for unit %s: %w", unit.ID, err)
	}
	unit.Embedding = vec
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for unit %s: %w", unit.ID, err)
	}
	unit.CreatedAt = ts
	return &unit, nil
}

// ResolveIdempotentUnit returns the unit previously stored under key, if any.
// Read-only, so callers can replay without holding the write lock or
// recomputing embeddings.
func (dm *DBManager) ResolveIdempotentUnit(ctx context.Context, key string) (*apptype.AtomicUnit, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, nil
	}
	stmt, err := dm.getPreparedStmt(ctx, "SELECT entity_id FROM idempotency_keys WHERE key = ? AND kind = 'unit'")
	if err != nil {
		return nil, false, err
	}
	var unitID string
	if err := stmt.QueryRowContext(ctx, key).Scan(&unitID); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to resolve idempotency key: %w", err)
	}
	unit, err := dm.GetUnit(ctx, unitID)
	if err != nil {
		return nil, false, err
	}
	return unit, true, nil
}

// CreateUnit inserts a new atomic unit. When idemKey is non-empty and was
// already recorded, the stored unit is returned with replayed=true and
// nothing is written. The key check and the insert commit atomically.
func (dm *DBManager) CreateUnit(ctx context.Context, content, source string, confidence float64, embedding []float32, idemKey string) (*apptype.AtomicUnit, bool, error) {
	done := metrics.TimeOp("db_create_unit")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(content) == "" {
		return nil, false, fmt.Errorf("%w: unit content must be a non-empty string", apptype.ErrValidation)
	}

	vectorString, err := dm.vectorToString(embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to convert embedding: %w", err)
	}

	dm.writeMu.Lock()
	defer dm.writeMu.Unlock()

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Re-check the key inside the write transaction; a concurrent writer may
	// have committed it between the caller's fast path and here.
	if idemKey != "" {
		var existingID string
		err := tx.QueryRowContext(ctx, "SELECT entity_id FROM idempotency_keys WHERE key = ? AND kind = 'unit'", idemKey).Scan(&existingID)
		if err == nil {
			unit, gErr := dm.getUnitTx(ctx, tx, existingID)
			if gErr != nil {
				return nil, false, gErr
			}
			success = true
			return unit, true, nil
		}
		if err != sql.ErrNoRows {
			return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	now := time.Now().UTC()
	unit := &apptype.AtomicUnit{
		ID:         uuid.NewString(),
		Content:    content,
		Source:     source,
		Confidence: confidence,
		CreatedAt:  now,
		Embedding:  embedding,
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO units (id, content, source, confidence, embedding, created_at) VALUES (?, ?, ?, ?, vector32(?), ?)",
		unit.ID, unit.Content, unit.Source, unit.Confidence, vectorString, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert unit: %w", err)
	}

	if idemKey != "" {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO idempotency_keys (key, kind, entity_id, created_at) VALUES (?, 'unit', ?, ?)",
			idemKey, unit.ID, now.Format(time.RFC3339Nano))
		if err != nil {
			return nil, false, fmt.Errorf("failed to record idempotency key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit unit: %w", err)
	}
	success = true
	return unit, false, nil
}

// getUnitTx fetches a unit inside an open transaction.
func (dm *DBManager) getUnitTx(ctx context.Context, tx *sql.Tx, id string) (*apptype.AtomicUnit, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+unitColumns+" FROM units WHERE id = ?", id)
	unit, err := dm.scanUnit(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: unit %s", apptype.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get unit %s: %w", id, err)
	}
	return unit, nil
}

// GetUnit retrieves a single unit by id.
func (dm *DBManager) GetUnit(ctx context.Context, id string) (*apptype.AtomicUnit, error) {
	done := metrics.TimeOp("db_get_unit")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx, "SELECT "+unitColumns+" FROM units WHERE id = ?")
	if err != nil {
		return nil, err
	}
	row := stmt.QueryRowContext(ctx, id)
	unit, err := dm.scanUnit(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: unit %s", apptype.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get unit %s: %w", id, err)
	}
	success = true
	return unit, nil
}

// ListUnits returns units in insertion order.
func (dm *DBManager) ListUnits(ctx context.Context, limit, offset int) ([]apptype.AtomicUnit, error) {
	done := metrics.TimeOp("db_list_units")
	success := false
	defer func() { done(success) }()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	stmt, err := dm.getPreparedStmt(ctx, "SELECT "+unitColumns+" FROM units ORDER BY rowid LIMIT ? OFFSET ?")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []apptype.AtomicUnit
	for rows.Next() {
		unit, err := dm.scanUnit(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, *unit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return units, nil
}

// CountUnits returns the number of stored units.
func (dm *DBManager) CountUnits(ctx context.Context) (int, error) {
	stmt, err := dm.getPreparedStmt(ctx, "SELECT COUNT(*) FROM units")
	if err != nil {
		return 0, err
	}
	var n int
	if err := stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count units: %w", err)
	}
	return n, nil
}
