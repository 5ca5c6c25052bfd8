package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
	"github.com/claimgraph/mcp-claimgraph-go/internal/buildinfo"
	"github.com/claimgraph/mcp-claimgraph-go/internal/engine"
	"github.com/claimgraph/mcp-claimgraph-go/internal/metrics"
)

const serverName = "mcp-claimgraph-go"

// MCPServer handles MCP protocol communication
type MCPServer struct {
	server *mcp.Server
	engine *engine.Engine
}

// NewMCPServer creates a new MCP server
func NewMCPServer(eng *engine.Engine) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: buildinfo.Version,
	}, nil)

	mcpServer := &MCPServer{
		server: server,
		engine: eng,
	}

	// initialize metrics from env (no-op if disabled)
	metrics.InitFromEnv()
	mcpServer.setupToolHandlers()
	return mcpServer
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	ingestInputSchema, err := jsonschema.For[apptype.IngestHypothesisArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for IngestHypothesisArgs: %v", err))
	}
	ingestOutputSchema, err := jsonschema.For[apptype.IngestHypothesisResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for IngestHypothesisResult: %v", err))
	}
	connectInputSchema, err := jsonschema.For[apptype.ConnectPropositionsArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for ConnectPropositionsArgs: %v", err))
	}
	connectOutputSchema, err := jsonschema.For[apptype.ConnectPropositionsResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for ConnectPropositionsResult: %v", err))
	}
	searchInputSchema, err := jsonschema.For[apptype.SemanticSearchArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for SemanticSearchArgs: %v", err))
	}
	searchOutputSchema, err := jsonschema.For[apptype.SemanticSearchResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for SemanticSearchResult: %v", err))
	}
	lineageInputSchema, err := jsonschema.For[apptype.FindLineageArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for FindLineageArgs: %v", err))
	}
	lineageOutputSchema, err := jsonschema.For[apptype.FindLineageResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for FindLineageResult: %v", err))
	}
	contradictionsInputSchema, err := jsonschema.For[apptype.FindContradictionsArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for FindContradictionsArgs: %v", err))
	}
	contradictionsOutputSchema, err := jsonschema.For[apptype.FindContradictionsResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for FindContradictionsResult: %v", err))
	}
	getUnitInputSchema, err := jsonschema.For[apptype.GetUnitArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for GetUnitArgs: %v", err))
	}
	getUnitOutputSchema, err := jsonschema.For[apptype.GetUnitResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for GetUnitResult: %v", err))
	}
	listInputSchema, err := jsonschema.For[apptype.ListPropositionsArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for ListPropositionsArgs: %v", err))
	}
	listOutputSchema, err := jsonschema.For[apptype.ListPropositionsResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for ListPropositionsResult: %v", err))
	}
	healthInputSchema, err := jsonschema.For[apptype.HealthArgs]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for HealthArgs: %v", err))
	}
	healthOutputSchema, err := jsonschema.For[apptype.HealthResult]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for HealthResult: %v", err))
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "ingest_hypothesis",
		Title:        "Ingest Hypothesis",
		Description:  "Store a scientific proposition as an atomic unit with its embedding. Safe to retry with the same idempotency key.",
		InputSchema:  ingestInputSchema,
		OutputSchema: ingestOutputSchema,
	}, s.handleIngestHypothesis)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "connect_propositions",
		Title:        "Connect Propositions",
		Description:  "Create a typed, directed, reasoned relation between two stored units.",
		InputSchema:  connectInputSchema,
		OutputSchema: connectOutputSchema,
	}, s.handleConnectPropositions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "semantic_search",
		Title:        "Semantic Search",
		Description:  "Rank stored units by embedding similarity to a free-text query.",
		InputSchema:  searchInputSchema,
		OutputSchema: searchOutputSchema,
	}, s.handleSemanticSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "find_scientific_lineage",
		Title:        "Find Scientific Lineage",
		Description:  "Trace the shortest directed path of relations between two concepts.",
		InputSchema:  lineageInputSchema,
		OutputSchema: lineageOutputSchema,
	}, s.handleFindLineage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "find_contradictions",
		Title:        "Find Contradictions",
		Description:  "Surface stored claims that oppose a given claim via refutes or contradicts relations.",
		InputSchema:  contradictionsInputSchema,
		OutputSchema: contradictionsOutputSchema,
	}, s.handleFindContradictions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "get_unit",
		Title:        "Get Unit",
		Description:  "Retrieve a unit with its incoming and outgoing relations.",
		InputSchema:  getUnitInputSchema,
		OutputSchema: getUnitOutputSchema,
	}, s.handleGetUnit)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "list_propositions",
		Title:        "List Propositions",
		Description:  "List stored units in insertion order.",
		InputSchema:  listInputSchema,
		OutputSchema: listOutputSchema,
	}, s.handleListPropositions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Returns server and configuration information.",
		InputSchema:  healthInputSchema,
		OutputSchema: healthOutputSchema,
	}, s.handleHealth)
}

// handleIngestHypothesis handles the ingest_hypothesis tool call
func (s *MCPServer) handleIngestHypothesis(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.IngestHypothesisArgs],
) (*mcp.CallToolResultFor[apptype.IngestHypothesisResult], error) {
	done := metrics.TimeTool("ingest_hypothesis")
	var success bool
	defer func() { done(success) }()

	confidence := 1.0
	if params.Arguments.Confidence != nil {
		confidence = *params.Arguments.Confidence
	}
	unit, replayed, err := s.engine.IngestHypothesis(ctx, params.Arguments.Hypothesis, params.Arguments.Source, confidence, params.Arguments.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest hypothesis: %w", err)
	}
	success = true

	text := fmt.Sprintf("Stored hypothesis as unit %s", unit.ID)
	if replayed {
		text = fmt.Sprintf("Replayed hypothesis; unit %s already stored", unit.ID)
	}
	return &mcp.CallToolResultFor[apptype.IngestHypothesisResult]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: apptype.IngestHypothesisResult{
			Status:           apptype.StatusSuccess,
			UnitID:           unit.ID,
			Unit:             *unit,
			Replayed:         replayed,
			AvailableActions: apptype.UnitActions(unit.ID),
		},
	}, nil
}

// handleConnectPropositions handles the connect_propositions tool call
func (s *MCPServer) handleConnectPropositions(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ConnectPropositionsArgs],
) (*mcp.CallToolResultFor[apptype.ConnectPropositionsResult], error) {
	done := metrics.TimeTool("connect_propositions")
	var success bool
	defer func() { done(success) }()

	rel, src, tgt, replayed, err := s.engine.ConnectPropositions(ctx,
		params.Arguments.IDA, params.Arguments.IDB,
		apptype.RelationType(params.Arguments.Relation),
		params.Arguments.Reasoning, params.Arguments.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to connect propositions: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.ConnectPropositionsResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Linked %s -[%s]-> %s", rel.SourceID, rel.Type, rel.TargetID),
		}},
		StructuredContent: apptype.ConnectPropositionsResult{
			Status:           apptype.StatusSuccess,
			Relation:         *rel,
			SourceUnit:       *src,
			TargetUnit:       *tgt,
			Replayed:         replayed,
			AvailableActions: apptype.ConnectionActions(rel.SourceID, rel.TargetID),
		},
	}, nil
}

// handleSemanticSearch handles the semantic_search tool call
func (s *MCPServer) handleSemanticSearch(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.SemanticSearchArgs],
) (*mcp.CallToolResultFor[apptype.SemanticSearchResult], error) {
	done := metrics.TimeTool("semantic_search")
	var success bool
	defer func() { done(success) }()

	// Default only when the caller omitted the field. An explicit negative
	// limit is malformed input and surfaces as a validation error.
	limit := params.Arguments.Limit
	if limit == 0 {
		limit = 10
	}
	hits, err := s.engine.SemanticSearch(ctx, params.Arguments.Query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	success = true

	results := make([]apptype.SearchHit, 0, len(hits))
	for _, h := range hits {
		results = append(results, apptype.SearchHit{
			Unit:             h.Unit,
			Score:            h.Score,
			AvailableActions: apptype.UnitActions(h.Unit.ID),
		})
	}
	return &mcp.CallToolResultFor[apptype.SemanticSearchResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Found %d matching units", len(results)),
		}},
		StructuredContent: apptype.SemanticSearchResult{
			Status:     apptype.StatusSuccess,
			Query:      params.Arguments.Query,
			Results:    results,
			TotalFound: len(results),
		},
	}, nil
}

// handleFindLineage handles the find_scientific_lineage tool call.
// No-match and no-path outcomes are reported as structured statuses, not
// tool errors.
func (s *MCPServer) handleFindLineage(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.FindLineageArgs],
) (*mcp.CallToolResultFor[apptype.FindLineageResult], error) {
	done := metrics.TimeTool("find_scientific_lineage")
	var success bool
	defer func() { done(success) }()

	start := params.Arguments.StartConcept
	end := params.Arguments.EndConcept
	path, err := s.engine.FindLineage(ctx, start, end, params.Arguments.MaxDepth)
	if err != nil {
		switch {
		case errors.Is(err, apptype.ErrNoMatch):
			success = true
			return &mcp.CallToolResultFor[apptype.FindLineageResult]{
				Content: []mcp.Content{&mcp.TextContent{Text: "No stored unit matches one of the concepts"}},
				StructuredContent: apptype.FindLineageResult{
					Status:           apptype.StatusNoMatchFound,
					StartConcept:     start,
					EndConcept:       end,
					Message:          err.Error(),
					AvailableActions: apptype.SearchActions(),
				},
			}, nil
		case errors.Is(err, apptype.ErrNoPath):
			success = true
			return &mcp.CallToolResultFor[apptype.FindLineageResult]{
				Content: []mcp.Content{&mcp.TextContent{Text: "No directed path connects the two concepts"}},
				StructuredContent: apptype.FindLineageResult{
					Status:           apptype.StatusNoPathFound,
					StartConcept:     start,
					EndConcept:       end,
					Message:          err.Error(),
					AvailableActions: apptype.SearchActions(),
				},
			}, nil
		}
		return nil, fmt.Errorf("lineage trace failed: %w", err)
	}
	success = true

	// Path length counts edges traversed, so the same-unit path is length 0.
	pathLength := len(path) - 1
	if pathLength < 0 {
		pathLength = 0
	}
	return &mcp.CallToolResultFor[apptype.FindLineageResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Lineage found spanning %d relations", pathLength),
		}},
		StructuredContent: apptype.FindLineageResult{
			Status:           apptype.StatusSuccess,
			StartConcept:     start,
			EndConcept:       end,
			Path:             path,
			PathLength:       pathLength,
			AvailableActions: apptype.SearchActions(),
		},
	}, nil
}

// handleFindContradictions handles the find_contradictions tool call
func (s *MCPServer) handleFindContradictions(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.FindContradictionsArgs],
) (*mcp.CallToolResultFor[apptype.FindContradictionsResult], error) {
	done := metrics.TimeTool("find_contradictions")
	var success bool
	defer func() { done(success) }()

	conflicts, err := s.engine.FindContradictions(ctx, params.Arguments.Claim)
	if err != nil {
		return nil, fmt.Errorf("contradiction check failed: %w", err)
	}
	success = true

	text := "No conflicting claims found"
	if len(conflicts) > 0 {
		text = fmt.Sprintf("Found %d conflicting claims", len(conflicts))
	}
	return &mcp.CallToolResultFor[apptype.FindContradictionsResult]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: apptype.FindContradictionsResult{
			Status:           apptype.StatusSuccess,
			Claim:            params.Arguments.Claim,
			ConflictsFound:   len(conflicts) > 0,
			Conflicts:        conflicts,
			AvailableActions: apptype.ConflictActions(),
		},
	}, nil
}

// handleGetUnit handles the get_unit tool call
func (s *MCPServer) handleGetUnit(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetUnitArgs],
) (*mcp.CallToolResultFor[apptype.GetUnitResult], error) {
	done := metrics.TimeTool("get_unit")
	var success bool
	defer func() { done(success) }()

	unit, out, in, err := s.engine.GetUnit(ctx, params.Arguments.UnitID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.GetUnitResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Unit %s has %d outgoing and %d incoming relations", unit.ID, len(out), len(in)),
		}},
		StructuredContent: apptype.GetUnitResult{
			Status:           apptype.StatusSuccess,
			Unit:             *unit,
			RelationsOut:     out,
			RelationsIn:      in,
			AvailableActions: apptype.UnitActions(unit.ID),
		},
	}, nil
}

// handleListPropositions handles the list_propositions tool call
func (s *MCPServer) handleListPropositions(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ListPropositionsArgs],
) (*mcp.CallToolResultFor[apptype.ListPropositionsResult], error) {
	done := metrics.TimeTool("list_propositions")
	var success bool
	defer func() { done(success) }()

	limit := params.Arguments.Limit
	if limit <= 0 {
		limit = 50
	}
	units, total, err := s.engine.ListPropositions(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list propositions: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.ListPropositionsResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Listing %d of %d units", len(units), total),
		}},
		StructuredContent: apptype.ListPropositionsResult{
			Status: apptype.StatusSuccess,
			Units:  units,
			Count:  total,
		},
	}, nil
}

// handleHealth handles the health_check tool call
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	defer func() { done(true) }()
	cfg := s.engine.DB().Config()
	inUse, idle := s.engine.DB().PoolStats()
	metrics.Default().ObservePoolStats(inUse, idle)
	providerName := "none"
	if p := s.engine.Provider(); p != nil {
		providerName = p.Name()
	}
	res := apptype.HealthResult{
		Name:          serverName,
		Version:       buildinfo.Version,
		Revision:      buildinfo.Revision,
		BuildDate:     buildinfo.BuildDate,
		EmbeddingDims: cfg.EmbeddingDims,
		Provider:      providerName,
	}
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: res,
	}, nil
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	s.startPoolStatsReporter(ctx)
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	s.startPoolStatsReporter(ctx)
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("SSE MCP server listening on %s%s", addr, endpoint)
	return srv.ListenAndServe()
}

func (s *MCPServer) startPoolStatsReporter(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				inUse, idle := s.engine.DB().PoolStats()
				metrics.Default().ObservePoolStats(inUse, idle)
			}
		}
	}()
}
