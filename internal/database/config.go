package database

import (
	"os"
	"strconv"
)

// Config holds the database configuration
type Config struct {
	URL           string
	AuthToken     string
	EmbeddingDims int

	// Connection pool tuning
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	url := os.Getenv("LIBSQL_URL")
	if url == "" {
		url = "file:./claimgraph.db"
	}

	dims := 4
	if v := os.Getenv("EMBEDDING_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			dims = n
		}
	}

	return &Config{
		URL:            url,
		AuthToken:      os.Getenv("LIBSQL_AUTH_TOKEN"),
		EmbeddingDims:  dims,
		MaxOpenConns:   envInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   envInt("DB_MAX_IDLE_CONNS"),
		ConnMaxIdleSec: envInt("DB_CONN_MAX_IDLE_SEC"),
		ConnMaxLifeSec: envInt("DB_CONN_MAX_LIFE_SEC"),
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
