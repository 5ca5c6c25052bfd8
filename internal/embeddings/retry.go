package embeddings

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryingProvider wraps a Provider and retries transient failures with
// exponential backoff. Non-retryable errors (bad requests, auth) fail fast.
type retryingProvider struct {
	base       Provider
	maxRetries uint64
	initial    time.Duration
	maxDelay   time.Duration
}

// withRetryFromEnv wraps base with retry behavior. EMBEDDINGS_MAX_RETRIES=0
// disables wrapping.
func withRetryFromEnv(base Provider) Provider {
	if base == nil {
		return nil
	}
	maxRetries := uint64(3)
	if v := strings.TrimSpace(os.Getenv("EMBEDDINGS_MAX_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			maxRetries = uint64(n)
		}
	}
	if maxRetries == 0 {
		return base
	}
	return &retryingProvider{
		base:       base,
		maxRetries: maxRetries,
		initial:    500 * time.Millisecond,
		maxDelay:   30 * time.Second,
	}
}

func (p *retryingProvider) Name() string    { return p.base.Name() }
func (p *retryingProvider) Dimensions() int { return p.base.Dimensions() }

func (p *retryingProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initial
	bo.MaxInterval = p.maxDelay

	var result [][]float32
	op := func() error {
		vecs, err := p.base.Embed(ctx, inputs)
		if err != nil {
			if !isRetryableError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = vecs
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, p.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// isRetryableError determines if a provider error is worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"500", "internal server error",
		"502", "bad gateway",
		"503", "service unavailable",
		"504", "gateway timeout",
		"timeout",
		"connection reset",
		"connection refused",
		"temporary failure",
		"rate limit",
		"too many requests",
		"429",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	type httpErrorWithStatusCode interface {
		HTTPStatusCode() int
	}
	if httpErr, ok := err.(httpErrorWithStatusCode); ok {
		statusCode := httpErr.HTTPStatusCode()
		if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
			return true
		}
	}
	return false
}
