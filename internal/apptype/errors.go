package apptype

import "errors"

// Error taxonomy shared by the database and engine layers. Callers classify
// failures with errors.Is; handlers map them to structured statuses.
var (
	// ErrValidation marks malformed or missing required input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced unit or relation id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoMatch marks a concept-to-unit resolution that returned nothing.
	ErrNoMatch = errors.New("no matching unit found")
	// ErrNoPath marks a lineage search that exhausted the reachable graph
	// without reaching the target. Reported, not fatal.
	ErrNoPath = errors.New("no path found")
	// ErrEmbeddingProvider marks an embedding call that failed after retries.
	ErrEmbeddingProvider = errors.New("embedding provider error")
)
