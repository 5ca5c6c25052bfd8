package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Voyage AI embeddings: https://docs.voyageai.com/reference/embeddings-api

type voyageProvider struct {
	apiKey string
	model  string
	dims   int
	http   *http.Client
}

func newVoyageFromEnv() Provider {
	// API key is required. Support VOYAGEAI_API_KEY and VOYAGE_API_KEY aliases.
	key := strings.TrimSpace(os.Getenv("VOYAGEAI_API_KEY"))
	if key == "" {
		key = strings.TrimSpace(os.Getenv("VOYAGE_API_KEY"))
		if key == "" {
			return nil
		}
	}
	model := strings.TrimSpace(os.Getenv("VOYAGEAI_EMBEDDINGS_MODEL"))
	if model == "" {
		model = "voyage-3-lite"
	}

	// Prefer explicit env override, else try global EMBEDDING_DIMS to stay in
	// sync with the DB schema.
	dims := 1024
	if v := strings.TrimSpace(os.Getenv("VOYAGEAI_EMBEDDINGS_DIMS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dims = n
		}
	} else if v := strings.TrimSpace(os.Getenv("EMBEDDING_DIMS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dims = n
		}
	}
	return &voyageProvider{apiKey: key, model: model, dims: dims, http: &http.Client{Timeout: 30 * time.Second}}
}

func (p *voyageProvider) Name() string    { return "voyageai" }
func (p *voyageProvider) Dimensions() int { return p.dims }

func (p *voyageProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	payload := map[string]any{
		"model": p.model,
		"input": inputs,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.voyageai.com/v1/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Detail != "" {
			return nil, fmt.Errorf("voyageai error: %s", er.Detail)
		}
		return nil, fmt.Errorf("voyageai http status: %s", resp.Status)
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	res := make([][]float32, 0, len(out.Data))
	for _, d := range out.Data {
		res = append(res, f64to32(d.Embedding))
	}
	return res, nil
}
