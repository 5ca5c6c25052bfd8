package claimgraph

import (
	"github.com/claimgraph/mcp-claimgraph-go/internal/database"
)

// Config exposes a stable wrapper for database configuration in package mode.
// Fields map directly to the internal database config.
type Config struct {
	URL            string
	AuthToken      string
	EmbeddingDims  int
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

func (c *Config) toInternal() *database.Config {
	return &database.Config{
		URL:            c.URL,
		AuthToken:      c.AuthToken,
		EmbeddingDims:  c.EmbeddingDims,
		MaxOpenConns:   c.MaxOpenConns,
		MaxIdleConns:   c.MaxIdleConns,
		ConnMaxIdleSec: c.ConnMaxIdleSec,
		ConnMaxLifeSec: c.ConnMaxLifeSec,
	}
}
