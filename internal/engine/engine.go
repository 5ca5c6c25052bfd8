package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
	"github.com/claimgraph/mcp-claimgraph-go/internal/database"
	"github.com/claimgraph/mcp-claimgraph-go/internal/embeddings"
)

// Engine implements the claim-graph operations on top of the database layer
// and an embeddings provider. All write paths are idempotency-key aware.
type Engine struct {
	db       *database.DBManager
	provider embeddings.Provider
	logger   *slog.Logger
}

// New creates an Engine. provider may be nil, in which case operations that
// need embeddings fail with ErrEmbeddingProvider.
func New(db *database.DBManager, provider embeddings.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, provider: provider, logger: logger}
}

// Provider returns the configured embeddings provider, or nil.
func (e *Engine) Provider() embeddings.Provider { return e.provider }

// DB exposes the underlying database manager.
func (e *Engine) DB() *database.DBManager { return e.db }

// embedOne produces the embedding for a single text.
func (e *Engine) embedOne(ctx context.Context, text string) ([]float32, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("%w: no embeddings provider configured", apptype.ErrEmbeddingProvider)
	}
	vecs, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apptype.ErrEmbeddingProvider, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: provider returned %d embeddings for 1 input", apptype.ErrEmbeddingProvider, len(vecs))
	}
	return vecs[0], nil
}

// IngestHypothesis stores a new atomic unit for the hypothesis text. Replays
// of a known idempotency key return the stored unit without calling the
// embeddings provider.
func (e *Engine) IngestHypothesis(ctx context.Context, hypothesis, source string, confidence float64, idemKey string) (*apptype.AtomicUnit, bool, error) {
	if strings.TrimSpace(hypothesis) == "" {
		return nil, false, fmt.Errorf("%w: hypothesis cannot be empty", apptype.ErrValidation)
	}
	if confidence < 0 || confidence > 1 {
		return nil, false, fmt.Errorf("%w: confidence must be in [0, 1], got %g", apptype.ErrValidation, confidence)
	}

	// Replay fast path: a recorded key never re-embeds.
	if unit, ok, err := e.db.ResolveIdempotentUnit(ctx, idemKey); err != nil {
		return nil, false, err
	} else if ok {
		e.logger.Debug("ingest replayed", "unit_id", unit.ID, "idempotency_key", idemKey)
		return unit, true, nil
	}

	embedding, err := e.embedOne(ctx, hypothesis)
	if err != nil {
		return nil, false, err
	}
	unit, replayed, err := e.db.CreateUnit(ctx, hypothesis, source, confidence, embedding, idemKey)
	if err != nil {
		return nil, false, err
	}
	e.logger.Info("hypothesis ingested", "unit_id", unit.ID, "replayed", replayed)
	return unit, replayed, nil
}

// ConnectPropositions links two existing units with a typed directed relation.
func (e *Engine) ConnectPropositions(ctx context.Context, sourceID, targetID string, relType apptype.RelationType, reasoning, idemKey string) (*apptype.Relation, *apptype.AtomicUnit, *apptype.AtomicUnit, bool, error) {
	if !relType.Valid() {
		return nil, nil, nil, false, fmt.Errorf("%w: unknown relation type %q", apptype.ErrValidation, relType)
	}
	if strings.TrimSpace(reasoning) == "" {
		return nil, nil, nil, false, fmt.Errorf("%w: reasoning cannot be empty", apptype.ErrValidation)
	}

	if rel, ok, err := e.db.ResolveIdempotentRelation(ctx, idemKey); err != nil {
		return nil, nil, nil, false, err
	} else if ok {
		src, tgt, lErr := e.loadEndpoints(ctx, rel)
		if lErr != nil {
			return nil, nil, nil, false, lErr
		}
		e.logger.Debug("connect replayed", "relation_id", rel.ID, "idempotency_key", idemKey)
		return rel, src, tgt, true, nil
	}

	rel, replayed, err := e.db.CreateRelation(ctx, sourceID, targetID, relType, reasoning, idemKey)
	if err != nil {
		return nil, nil, nil, false, err
	}
	src, tgt, err := e.loadEndpoints(ctx, rel)
	if err != nil {
		return nil, nil, nil, false, err
	}
	e.logger.Info("propositions connected", "relation_id", rel.ID, "type", rel.Type, "source_id", sourceID, "target_id", targetID)
	return rel, src, tgt, replayed, nil
}

func (e *Engine) loadEndpoints(ctx context.Context, rel *apptype.Relation) (*apptype.AtomicUnit, *apptype.AtomicUnit, error) {
	src, err := e.db.GetUnit(ctx, rel.SourceID)
	if err != nil {
		return nil, nil, err
	}
	tgt, err := e.db.GetUnit(ctx, rel.TargetID)
	if err != nil {
		return nil, nil, err
	}
	return src, tgt, nil
}

// SemanticSearch embeds the query text and returns the most similar units.
func (e *Engine) SemanticSearch(ctx context.Context, query string, limit int) ([]apptype.ScoredUnit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", apptype.ErrValidation)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", apptype.ErrValidation)
	}
	embedding, err := e.embedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := e.db.SearchSimilar(ctx, embedding, limit, 0)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// resolveConcept maps a natural-language concept to its single closest stored
// unit, wrapping ErrNoMatch when the store is empty.
func (e *Engine) resolveConcept(ctx context.Context, concept string) (*apptype.AtomicUnit, error) {
	if strings.TrimSpace(concept) == "" {
		return nil, fmt.Errorf("%w: concept cannot be empty", apptype.ErrValidation)
	}
	embedding, err := e.embedOne(ctx, concept)
	if err != nil {
		return nil, err
	}
	hits, err := e.db.SearchSimilar(ctx, embedding, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: %q", apptype.ErrNoMatch, concept)
	}
	unit := hits[0].Unit
	return &unit, nil
}

// GetUnit returns a unit with its outgoing and incoming relations.
func (e *Engine) GetUnit(ctx context.Context, id string) (*apptype.AtomicUnit, []apptype.Relation, []apptype.Relation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil, nil, fmt.Errorf("%w: unit id cannot be empty", apptype.ErrValidation)
	}
	unit, err := e.db.GetUnit(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	out, err := e.db.RelationsFrom(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	in, err := e.db.RelationsTo(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return unit, out, in, nil
}

// ListPropositions returns stored units in insertion order plus the total
// count.
func (e *Engine) ListPropositions(ctx context.Context, limit, offset int) ([]apptype.AtomicUnit, int, error) {
	units, err := e.db.ListUnits(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := e.db.CountUnits(ctx)
	if err != nil {
		return nil, 0, err
	}
	return units, total, nil
}
