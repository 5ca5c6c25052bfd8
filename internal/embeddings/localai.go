package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// LocalAI and llama.cpp expose the same OpenAI-compatible /embeddings route,
// so one provider covers both. LOCALAI_BASE_URL default http://localhost:8080/v1.

type localAIProvider struct {
	embedURL string
	model    string
	dims     int
	apiKey   string // optional
	http     *http.Client
}

type openAICompatRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAICompatResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newLocalAIFromEnv() Provider {
	base := strings.TrimSpace(os.Getenv("LOCALAI_BASE_URL"))
	if base == "" {
		base = "http://localhost:8080/v1"
	}
	model := strings.TrimSpace(os.Getenv("LOCALAI_EMBEDDINGS_MODEL"))
	if model == "" {
		model = "text-embedding-ada-002"
	}
	dims := 1536
	if strings.Contains(model, "large") {
		dims = 3072
	}
	return &localAIProvider{
		embedURL: strings.TrimSuffix(base, "/") + "/embeddings",
		model:    model,
		dims:     dims,
		apiKey:   strings.TrimSpace(os.Getenv("LOCALAI_API_KEY")),
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *localAIProvider) Name() string    { return "localai" }
func (p *localAIProvider) Dimensions() int { return p.dims }

func (p *localAIProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(openAICompatRequest{Model: p.model, Input: inputs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.embedURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded openAICompatResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
		if decoded.Error.Message != "" {
			return nil, fmt.Errorf("localai error: %s", decoded.Error.Message)
		}
		return nil, fmt.Errorf("localai http status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if len(decoded.Data) != len(inputs) {
		return nil, fmt.Errorf("localai returned %d embeddings for %d inputs", len(decoded.Data), len(inputs))
	}
	vecs := make([][]float32, len(decoded.Data))
	for i, d := range decoded.Data {
		vecs[i] = f64to32(d.Embedding)
	}
	return vecs, nil
}
