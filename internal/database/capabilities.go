package database

import (
	"context"
	"strings"
	"time"
)

// capFlags stores capability detection results for the DB handle
type capFlags struct {
	checked    bool
	vectorTopK bool
}

// detectCapabilities probes presence of vector_top_k and records flags.
func (dm *DBManager) detectCapabilities(ctx context.Context) {
	dm.capMu.RLock()
	caps := dm.caps
	dm.capMu.RUnlock()
	if caps.checked {
		return
	}

	// Skip ANN probe for in-memory test URLs to avoid driver quirks
	if strings.Contains(dm.config.URL, "mode=memory") {
		dm.capMu.Lock()
		dm.caps = capFlags{checked: true, vectorTopK: false}
		dm.capMu.Unlock()
		return
	}

	zero := dm.vectorZeroString()
	// Attempt to call vector_top_k with a short timeout; close rows if opened
	ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	rows, err := dm.db.QueryContext(ctx2, "SELECT id FROM vector_top_k('idx_units_embedding', vector32(?), 1) LIMIT 1", zero)
	if rows != nil {
		rows.Close()
	}
	caps.vectorTopK = (err == nil)
	caps.checked = true

	dm.capMu.Lock()
	dm.caps = caps
	dm.capMu.Unlock()
}

func (dm *DBManager) hasVectorTopK() bool {
	dm.capMu.RLock()
	defer dm.capMu.RUnlock()
	return dm.caps.checked && dm.caps.vectorTopK
}
