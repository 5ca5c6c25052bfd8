package apptype

// Statuses used in tool results. NoMatchFound and NoPathFound are normal
// reported outcomes of lineage tracing, not tool errors.
const (
	StatusSuccess      = "success"
	StatusNoMatchFound = "no_match_found"
	StatusNoPathFound  = "no_path_found"
)

// IngestHypothesisArgs represents the arguments for the ingest_hypothesis tool
type IngestHypothesisArgs struct {
	Hypothesis     string   `json:"hypothesis" jsonschema:"The proposition text to store as an atomic unit."`
	Source         string   `json:"source,omitempty" jsonschema:"Optional DOI or source reference for the claim."`
	Confidence     *float64 `json:"confidence,omitempty" jsonschema:"Confidence score in [0,1]. Defaults to 1.0."`
	IdempotencyKey string   `json:"idempotencyKey" jsonschema:"Stable caller-supplied key making retries safe. Replays return the original unit."`
}

// IngestHypothesisResult is the structured result of ingest_hypothesis.
type IngestHypothesisResult struct {
	Status           string            `json:"status"`
	UnitID           string            `json:"unitId"`
	Unit             AtomicUnit        `json:"unit"`
	Replayed         bool              `json:"replayed"`
	AvailableActions []AvailableAction `json:"availableActions"`
}

// ConnectPropositionsArgs represents the arguments for connect_propositions
type ConnectPropositionsArgs struct {
	IDA            string `json:"idA" jsonschema:"ID of the source unit (the earlier or supporting idea)."`
	IDB            string `json:"idB" jsonschema:"ID of the target unit."`
	Relation       string `json:"relation" jsonschema:"Relation type: supports, refutes, extends, implies, or contradicts."`
	Reasoning      string `json:"reasoning" jsonschema:"Explanation for why this relation exists."`
	IdempotencyKey string `json:"idempotencyKey" jsonschema:"Stable caller-supplied key making retries safe."`
}

// ConnectPropositionsResult is the structured result of connect_propositions.
type ConnectPropositionsResult struct {
	Status           string            `json:"status"`
	Relation         Relation          `json:"relation"`
	SourceUnit       AtomicUnit        `json:"sourceUnit"`
	TargetUnit       AtomicUnit        `json:"targetUnit"`
	Replayed         bool              `json:"replayed"`
	AvailableActions []AvailableAction `json:"availableActions"`
}

// SemanticSearchArgs represents the arguments for the semantic_search tool
type SemanticSearchArgs struct {
	Query string `json:"query" jsonschema:"Free-text query to rank units against."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results to return (default 10)."`
}

// SearchHit is one ranked unit in a semantic_search result.
type SearchHit struct {
	Unit             AtomicUnit        `json:"unit"`
	Score            float64           `json:"score"`
	AvailableActions []AvailableAction `json:"availableActions"`
}

// SemanticSearchResult is the structured result of semantic_search.
type SemanticSearchResult struct {
	Status     string      `json:"status"`
	Query      string      `json:"query"`
	Results    []SearchHit `json:"results"`
	TotalFound int         `json:"totalFound"`
}

// FindLineageArgs represents the arguments for find_scientific_lineage
type FindLineageArgs struct {
	StartConcept string `json:"startConcept" jsonschema:"Free-text description of the earlier idea."`
	EndConcept   string `json:"endConcept" jsonschema:"Free-text description of the later idea."`
	MaxDepth     int    `json:"maxDepth,omitempty" jsonschema:"Optional cap on traversal depth, counted in edges. Zero or omitted explores the whole reachable graph."`
}

// FindLineageResult is the structured result of find_scientific_lineage.
type FindLineageResult struct {
	Status           string            `json:"status"`
	StartConcept     string            `json:"startConcept"`
	EndConcept       string            `json:"endConcept"`
	Path             []LineageStep     `json:"path"`
	PathLength       int               `json:"pathLength"`
	Message          string            `json:"message,omitempty"`
	AvailableActions []AvailableAction `json:"availableActions"`
}

// FindContradictionsArgs represents the arguments for find_contradictions
type FindContradictionsArgs struct {
	Claim string `json:"claim" jsonschema:"Claim text to check against the graph for opposing relations."`
}

// FindContradictionsResult is the structured result of find_contradictions.
type FindContradictionsResult struct {
	Status           string            `json:"status"`
	Claim            string            `json:"claim"`
	ConflictsFound   bool              `json:"conflictsFound"`
	Conflicts        []ConflictResult  `json:"conflicts"`
	AvailableActions []AvailableAction `json:"availableActions"`
}

// GetUnitArgs represents the arguments for the get_unit tool
type GetUnitArgs struct {
	UnitID string `json:"unitId" jsonschema:"ID of the unit to retrieve."`
}

// GetUnitResult is the structured result of get_unit.
type GetUnitResult struct {
	Status           string            `json:"status"`
	Unit             AtomicUnit        `json:"unit"`
	RelationsOut     []Relation        `json:"relationsOut"`
	RelationsIn      []Relation        `json:"relationsIn"`
	AvailableActions []AvailableAction `json:"availableActions"`
}

// ListPropositionsArgs represents the arguments for list_propositions
type ListPropositionsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of units to return, in insertion order (default 50)."`
}

// ListPropositionsResult is the structured result of list_propositions.
type ListPropositionsResult struct {
	Status string       `json:"status"`
	Units  []AtomicUnit `json:"units"`
	Count  int          `json:"count"`
}

// Health
type HealthArgs struct{}

type HealthResult struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Revision      string `json:"revision"`
	BuildDate     string `json:"buildDate"`
	EmbeddingDims int    `json:"embeddingDims"`
	Provider      string `json:"provider"`
}
