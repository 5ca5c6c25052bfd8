package database

import "fmt"

// dynamicSchema returns schema DDL using the configured embedding dimension.
// created_at columns store RFC3339Nano UTC text so lexicographic order is
// chronological order; both tables are append-only.
func dynamicSchema(embeddingDims int) []string {
	if embeddingDims <= 0 {
		embeddingDims = 4
	}
	return []string{
		// Atomic units: one row per stored proposition
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS units (
        id TEXT PRIMARY KEY,
        content TEXT NOT NULL,
        source TEXT NOT NULL DEFAULT '',
        confidence REAL NOT NULL DEFAULT 1.0,
        embedding F32_BLOB(%d),
        created_at TEXT NOT NULL
    )`, embeddingDims),

		// Typed directed edges between units
		`CREATE TABLE IF NOT EXISTS relations (
        id TEXT PRIMARY KEY,
        source_id TEXT NOT NULL,
        target_id TEXT NOT NULL,
        relation_type TEXT NOT NULL,
        reasoning TEXT NOT NULL,
        created_at TEXT NOT NULL,
        FOREIGN KEY (source_id) REFERENCES units(id),
        FOREIGN KEY (target_id) REFERENCES units(id)
    )`,

		// Idempotency records: key -> produced entity, co-committed with the
		// unit/relation insert so a replay after crash cannot double-create
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
        key TEXT PRIMARY KEY,
        kind TEXT NOT NULL,
        entity_id TEXT NOT NULL,
        created_at TEXT NOT NULL
    )`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_units_created_at ON units(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_type_source ON relations(relation_type, source_id)`,

		// Create vector index for similarity search
		`CREATE INDEX IF NOT EXISTS idx_units_embedding ON units(libsql_vector_idx(embedding))`,
	}
}
