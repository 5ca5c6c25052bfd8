package claimgraph

import (
	"context"
	"log/slog"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
	"github.com/claimgraph/mcp-claimgraph-go/internal/database"
	"github.com/claimgraph/mcp-claimgraph-go/internal/embeddings"
	"github.com/claimgraph/mcp-claimgraph-go/internal/engine"
)

// Re-exported types so library users do not import internal packages.
type (
	AtomicUnit     = apptype.AtomicUnit
	Relation       = apptype.Relation
	RelationType   = apptype.RelationType
	ScoredUnit     = apptype.ScoredUnit
	LineageStep    = apptype.LineageStep
	ConflictResult = apptype.ConflictResult
)

const (
	RelationSupports    = apptype.RelationSupports
	RelationRefutes     = apptype.RelationRefutes
	RelationExtends     = apptype.RelationExtends
	RelationImplies     = apptype.RelationImplies
	RelationContradicts = apptype.RelationContradicts
)

// Sentinel errors for errors.Is classification.
var (
	ErrValidation = apptype.ErrValidation
	ErrNotFound   = apptype.ErrNotFound
	ErrNoMatch    = apptype.ErrNoMatch
	ErrNoPath     = apptype.ErrNoPath
)

// Provider is the embeddings provider contract accepted by NewService.
type Provider = embeddings.Provider

// Service provides a library-first API for claim-graph operations without MCP
// transport.
type Service struct {
	db     *database.DBManager
	engine *engine.Engine
}

// NewService constructs a Service with the provided config and provider. A nil
// provider disables embedding-dependent operations.
func NewService(cfg *Config, provider Provider, logger *slog.Logger) (*Service, error) {
	dm, err := database.NewDBManager(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	provider = embeddings.WrapToDims(provider, cfg.EmbeddingDims)
	return &Service{db: dm, engine: engine.New(dm, provider, logger)}, nil
}

// Close releases resources.
func (s *Service) Close() error { return s.db.Close() }

// IngestHypothesis stores a proposition and returns the unit plus whether the
// idempotency key replayed a previous write.
func (s *Service) IngestHypothesis(ctx context.Context, hypothesis, source string, confidence float64, idempotencyKey string) (*AtomicUnit, bool, error) {
	return s.engine.IngestHypothesis(ctx, hypothesis, source, confidence, idempotencyKey)
}

// ConnectPropositions links two stored units with a typed relation.
func (s *Service) ConnectPropositions(ctx context.Context, sourceID, targetID string, relType RelationType, reasoning, idempotencyKey string) (*Relation, bool, error) {
	rel, _, _, replayed, err := s.engine.ConnectPropositions(ctx, sourceID, targetID, relType, reasoning, idempotencyKey)
	return rel, replayed, err
}

// SemanticSearch ranks stored units against a free-text query.
func (s *Service) SemanticSearch(ctx context.Context, query string, limit int) ([]ScoredUnit, error) {
	return s.engine.SemanticSearch(ctx, query, limit)
}

// FindLineage traces the shortest directed relation path between two concepts.
func (s *Service) FindLineage(ctx context.Context, startConcept, endConcept string, maxDepth int) ([]LineageStep, error) {
	return s.engine.FindLineage(ctx, startConcept, endConcept, maxDepth)
}

// FindContradictions surfaces opposing claims in the neighborhood of a claim.
func (s *Service) FindContradictions(ctx context.Context, claim string) ([]ConflictResult, error) {
	return s.engine.FindContradictions(ctx, claim)
}

// GetUnit returns a unit with its outgoing and incoming relations.
func (s *Service) GetUnit(ctx context.Context, id string) (*AtomicUnit, []Relation, []Relation, error) {
	return s.engine.GetUnit(ctx, id)
}

// ListPropositions returns units in insertion order plus the total count.
func (s *Service) ListPropositions(ctx context.Context, limit, offset int) ([]AtomicUnit, int, error) {
	return s.engine.ListPropositions(ctx, limit, offset)
}
