package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/claimgraph/mcp-claimgraph-go/internal/apptype"
)

// quickstart-tester drives a full ingest/connect/search/trace session against
// a running SSE server and prints a JSON report.

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "quickstart-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, StartedAt: start}
	steps := make([]StepResult, 0, 16)

	// Connect
	tConn := time.Now()
	connRes := StepResult{Name: "connect"}
	session, err := client.Connect(ctx, transport)
	if err != nil {
		connRes.Success = false
		connRes.Error = err.Error()
		connRes.ElapsedMs = elapsedMsSince(tConn)
		steps = append(steps, connRes)
		finish(report, steps, start, false)
		return
	}
	defer session.Close()
	connRes.Success = true
	connRes.ElapsedMs = elapsedMsSince(tConn)
	steps = append(steps, connRes)

	steps = append(steps, runListTools(ctx, session))

	// Seed a small lineage of evolutionary claims.
	runKey := fmt.Sprintf("qs-%d", time.Now().UnixNano())
	ids := make([]string, 0, 3)
	hypotheses := []string{
		"Species change gradually through natural selection acting on heritable variation",
		"Genes are the units of heritable variation that selection acts upon",
		"Changes in gene regulation drive morphological evolution between species",
	}
	for i, h := range hypotheses {
		step, unitID := runIngest(ctx, session, h, fmt.Sprintf("%s-ingest-%d", runKey, i))
		steps = append(steps, step)
		if !step.Success {
			finish(report, steps, start, false)
			return
		}
		ids = append(ids, unitID)
	}

	// Replaying the first key must return the same unit without writing.
	replayStep, replayID := runIngest(ctx, session, hypotheses[0], fmt.Sprintf("%s-ingest-0", runKey))
	replayStep.Name = "ingest_replay"
	if replayStep.Success && replayID != ids[0] {
		replayStep.Success = false
		replayStep.Error = fmt.Sprintf("replay returned unit %s, want %s", replayID, ids[0])
	}
	steps = append(steps, replayStep)

	steps = append(steps, runConnect(ctx, session, ids[0], ids[1], "extends", "Genetics grounds the mechanism of variation", runKey+"-rel-0"))
	steps = append(steps, runConnect(ctx, session, ids[1], ids[2], "extends", "Regulatory genetics refines where variation acts", runKey+"-rel-1"))
	steps = append(steps, runSemanticSearch(ctx, session, "heritable variation"))
	steps = append(steps, runLineage(ctx, session, "gradual change by natural selection", "gene regulation and morphology"))
	steps = append(steps, runContradictions(ctx, session, "selection acts on heritable variation"))
	steps = append(steps, runGetUnit(ctx, session, ids[0]))
	steps = append(steps, runListPropositions(ctx, session))
	steps = append(steps, runHealth(ctx, session))

	passed := true
	for _, s := range steps {
		if !s.Success {
			passed = false
			break
		}
	}
	finish(report, steps, start, passed)
}

func finish(report Report, steps []StepResult, start time.Time, passed bool) {
	report.Steps = steps
	report.DurationMs = elapsedMsSince(start)
	report.Passed = passed
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	if !passed {
		os.Exit(1)
	}
}

func runListTools(ctx context.Context, session *mcp.ClientSession) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "list_tools"}
	if _, err := session.ListTools(ctx, &mcp.ListToolsParams{}); err != nil {
		res.Success = false
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func runIngest(ctx context.Context, session *mcp.ClientSession, hypothesis, idemKey string) (StepResult, string) {
	t0 := time.Now()
	res := StepResult{Name: "ingest_hypothesis"}
	args := apptype.IngestHypothesisArgs{Hypothesis: hypothesis, IdempotencyKey: idemKey}
	raw, _ := json.Marshal(args)
	out, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "ingest_hypothesis", Arguments: json.RawMessage(raw)})
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		res.ElapsedMs = elapsedMsSince(t0)
		return res, ""
	}
	var parsed apptype.IngestHypothesisResult
	if err := decodeStructured(out, &parsed); err != nil {
		res.Success = false
		res.Error = err.Error()
		res.ElapsedMs = elapsedMsSince(t0)
		return res, ""
	}
	res.Success = parsed.UnitID != ""
	if !res.Success {
		res.Error = "ingest returned empty unit id"
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res, parsed.UnitID
}

func runConnect(ctx context.Context, session *mcp.ClientSession, idA, idB, relation, reasoning, idemKey string) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "connect_propositions"}
	args := apptype.ConnectPropositionsArgs{IDA: idA, IDB: idB, Relation: relation, Reasoning: reasoning, IdempotencyKey: idemKey}
	raw, _ := json.Marshal(args)
	if _, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "connect_propositions", Arguments: json.RawMessage(raw)}); err != nil {
		res.Success = false
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func runSemanticSearch(ctx context.Context, session *mcp.ClientSession, query string) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "semantic_search"}
	args := apptype.SemanticSearchArgs{Query: query, Limit: 5}
	raw, _ := json.Marshal(args)
	out, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "semantic_search", Arguments: json.RawMessage(raw)})
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		res.ElapsedMs = elapsedMsSince(t0)
		return res
	}
	var parsed apptype.SemanticSearchResult
	if err := decodeStructured(out, &parsed); err != nil {
		res.Success = false
		res.Error = err.Error()
	} else if len(parsed.Results) == 0 {
		res.Success = false
		res.Error = "search returned no results"
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func runLineage(ctx context.Context, session *mcp.ClientSession, startConcept, endConcept string) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "find_scientific_lineage"}
	args := apptype.FindLineageArgs{StartConcept: startConcept, EndConcept: endConcept}
	raw, _ := json.Marshal(args)
	out, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "find_scientific_lineage", Arguments: json.RawMessage(raw)})
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		res.ElapsedMs = elapsedMsSince(t0)
		return res
	}
	var parsed apptype.FindLineageResult
	if err := decodeStructured(out, &parsed); err != nil {
		res.Success = false
		res.Error = err.Error()
	} else if parsed.Status != apptype.StatusSuccess {
		res.Success = false
		res.Error = fmt.Sprintf("lineage status %s: %s", parsed.Status, parsed.Message)
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func runContradictions(ctx context.Context, session *mcp.ClientSession, claim string) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "find_contradictions"}
	args := apptype.FindContradictionsArgs{Claim: claim}
	raw, _ := json.Marshal(args)
	if _, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "find_contradictions", Arguments: json.RawMessage(raw)}); err != nil {
		res.Success = false
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func runGetUnit(ctx context.Context, session *mcp.ClientSession, unitID string) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "get_unit"}
	args := apptype.GetUnitArgs{UnitID: unitID}
	raw, _ := json.Marshal(args)
	if _, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "get_unit", Arguments: json.RawMessage(raw)}); err != nil {
		res.Success = false
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func runListPropositions(ctx context.Context, session *mcp.ClientSession) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "list_propositions"}
	args := apptype.ListPropositionsArgs{Limit: 10}
	raw, _ := json.Marshal(args)
	if _, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "list_propositions", Arguments: json.RawMessage(raw)}); err != nil {
		res.Success = false
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func runHealth(ctx context.Context, session *mcp.ClientSession) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "health_check"}
	raw, _ := json.Marshal(apptype.HealthArgs{})
	if _, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "health_check", Arguments: json.RawMessage(raw)}); err != nil {
		res.Success = false
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

// decodeStructured re-marshals a tool result's structured content into out.
func decodeStructured(res *mcp.CallToolResult, out any) error {
	if res == nil || res.StructuredContent == nil {
		return fmt.Errorf("tool returned no structured content")
	}
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func elapsedMsSince(t time.Time) int64 { return time.Since(t).Milliseconds() }
