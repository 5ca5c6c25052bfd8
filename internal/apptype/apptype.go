package apptype

import "time"

// RelationType is the set of recognized typed edges between atomic units.
type RelationType string

const (
	RelationSupports    RelationType = "supports"
	RelationRefutes     RelationType = "refutes"
	RelationExtends     RelationType = "extends"
	RelationImplies     RelationType = "implies"
	RelationContradicts RelationType = "contradicts"
)

// Valid reports whether t is one of the recognized relation types.
func (t RelationType) Valid() bool {
	switch t {
	case RelationSupports, RelationRefutes, RelationExtends, RelationImplies, RelationContradicts:
		return true
	}
	return false
}

// Opposing reports whether t expresses opposition between its endpoints.
func (t RelationType) Opposing() bool {
	return t == RelationRefutes || t == RelationContradicts
}

// AtomicUnit is a single stored proposition/claim with its embedding vector.
// Units are immutable after creation and are never deleted.
type AtomicUnit struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Relation is a typed, directed, reasoned edge between two atomic units.
// Relations are immutable; parallel edges with different types are allowed.
type Relation struct {
	ID        string       `json:"id"`
	SourceID  string       `json:"sourceId"`
	TargetID  string       `json:"targetId"`
	Type      RelationType `json:"type"`
	Reasoning string       `json:"reasoning"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ScoredUnit is a similarity-search hit with its normalized score in [0,1].
type ScoredUnit struct {
	Unit  AtomicUnit `json:"unit"`
	Score float64    `json:"score"`
}

// LineageStep is one node on a lineage path. RelationToNext is nil on the
// final step.
type LineageStep struct {
	Unit           AtomicUnit `json:"unit"`
	RelationToNext *Relation  `json:"relationToNext,omitempty"`
}

// ConflictResult is a contradiction surfaced against a queried claim.
type ConflictResult struct {
	ConflictingUnit AtomicUnit `json:"conflictingUnit"`
	Relation        *Relation  `json:"relation,omitempty"`
	Explanation     string     `json:"explanation"`
}
