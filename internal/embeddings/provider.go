package embeddings

import (
	"context"
	"os"
	"strings"
)

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// NewFromEnv constructs a provider based on environment variables.
// EMBEDDINGS_PROVIDER: "openai", "ollama", "localai", "voyageai", or empty
// for disabled.
func NewFromEnv() Provider {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("EMBEDDINGS_PROVIDER")))
	switch name {
	case "openai":
		if p := newOpenAIFromEnv(); p != nil {
			return withRetryFromEnv(p)
		}
		return nil
	case "ollama":
		if p := newOllamaFromEnv(); p != nil {
			return withRetryFromEnv(p)
		}
		return nil
	case "localai", "llamacpp", "llama.cpp":
		if p := newLocalAIFromEnv(); p != nil {
			return withRetryFromEnv(p)
		}
		return nil
	case "voyage", "voyageai":
		if p := newVoyageFromEnv(); p != nil {
			return withRetryFromEnv(p)
		}
		return nil
	default:
		return nil
	}
}

func f64to32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
