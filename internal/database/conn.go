package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/claimgraph/mcp-claimgraph-go/internal/metrics"
)

// DBManager owns the libsql handle backing the unit store, the relation
// graph, the embedding column, and the idempotency map. Mutating operations
// serialize on writeMu around their check-key-then-create transaction.
type DBManager struct {
	config    *Config
	db        *sql.DB
	writeMu   sync.Mutex
	stmtCache map[string]*sql.Stmt
	stmtMu    sync.RWMutex
	caps      capFlags
	capMu     sync.RWMutex
}

// NewDBManager creates a new database manager
func NewDBManager(config *Config) (*DBManager, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("EMBEDDING_DIMS must be between 1 and 65536 inclusive, got %d", config.EmbeddingDims)
	}
	manager := &DBManager{
		config:    config,
		stmtCache: make(map[string]*sql.Stmt),
	}
	if err := manager.open(); err != nil {
		return nil, err
	}
	return manager, nil
}

func (dm *DBManager) open() error {
	dbURL := dm.config.URL

	var db *sql.DB
	var err error
	if strings.HasPrefix(dbURL, "file:") {
		db, err = sql.Open("libsql", dbURL)
	} else {
		authURL := dbURL
		if dm.config.AuthToken != "" {
			// Build URL safely and append/override the authToken parameter
			if u, perr := url.Parse(dbURL); perr == nil {
				q := u.Query()
				q.Set("authToken", dm.config.AuthToken)
				u.RawQuery = q.Encode()
				authURL = u.String()
			} else if strings.Contains(dbURL, "?") {
				authURL = dbURL + "&authToken=" + url.QueryEscape(dm.config.AuthToken)
			} else {
				authURL = dbURL + "?authToken=" + url.QueryEscape(dm.config.AuthToken)
			}
		}
		db, err = sql.Open("libsql", authURL)
	}
	if err != nil {
		return fmt.Errorf("failed to create database connector: %w", err)
	}

	if err := dm.initialize(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Apply connection pool tuning from config
	if dm.config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dm.config.MaxOpenConns)
	}
	if dm.config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(dm.config.MaxIdleConns)
	}
	if dm.config.ConnMaxIdleSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(dm.config.ConnMaxIdleSec) * time.Second)
	}
	if dm.config.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(dm.config.ConnMaxLifeSec) * time.Second)
	}

	dm.db = db
	dm.detectCapabilities(context.Background())

	stats := db.Stats()
	metrics.Default().ObservePoolStats(stats.InUse, stats.Idle)
	return nil
}

// initialize creates tables and indexes if they don't exist
func (dm *DBManager) initialize(db *sql.DB) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range dynamicSchema(dm.config.EmbeddingDims) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// Config returns the active configuration.
func (dm *DBManager) Config() *Config { return dm.config }

// PoolStats reports the connection pool usage for metrics gauges.
func (dm *DBManager) PoolStats() (inUse, idle int) {
	if dm.db == nil {
		return 0, 0
	}
	stats := dm.db.Stats()
	return stats.InUse, stats.Idle
}

// Close closes prepared statements and the database connection.
func (dm *DBManager) Close() error {
	dm.stmtMu.Lock()
	for _, stmt := range dm.stmtCache {
		_ = stmt.Close()
	}
	dm.stmtCache = make(map[string]*sql.Stmt)
	dm.stmtMu.Unlock()

	if dm.db == nil {
		return nil
	}
	return dm.db.Close()
}
