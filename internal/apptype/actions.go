package apptype

// AvailableAction is a follow-up operation suggestion attached to results so
// a driving agent can discover what to do next with an entity.
type AvailableAction struct {
	Tool          string            `json:"tool"`
	Description   string            `json:"description"`
	SuggestedArgs map[string]string `json:"suggestedArgs,omitempty"`
}

// UnitActions returns the standard follow-up actions for a unit. The table is
// fixed per entity kind; nothing here inspects the unit beyond its id.
func UnitActions(unitID string) []AvailableAction {
	return []AvailableAction{
		{
			Tool:          "connect_propositions",
			Description:   "Link this unit to another proposition",
			SuggestedArgs: map[string]string{"idA": unitID},
		},
		{
			Tool:        "semantic_search",
			Description: "Find related concepts",
		},
		{
			Tool:        "find_contradictions",
			Description: "Check for conflicts with this claim",
		},
		{
			Tool:          "get_unit",
			Description:   "Get full details of this unit",
			SuggestedArgs: map[string]string{"unitId": unitID},
		},
	}
}

// ConnectionActions returns the follow-up actions after creating a relation.
func ConnectionActions(sourceID, targetID string) []AvailableAction {
	return []AvailableAction{
		{
			Tool:          "find_scientific_lineage",
			Description:   "Trace the path of ideas through this connection",
			SuggestedArgs: map[string]string{},
		},
		{
			Tool:          "get_unit",
			Description:   "Inspect the source unit",
			SuggestedArgs: map[string]string{"unitId": sourceID},
		},
		{
			Tool:          "get_unit",
			Description:   "Inspect the target unit",
			SuggestedArgs: map[string]string{"unitId": targetID},
		},
	}
}

// SearchActions returns the follow-up actions for a search or lineage result.
func SearchActions() []AvailableAction {
	return []AvailableAction{
		{
			Tool:        "connect_propositions",
			Description: "Connect two of the returned units",
		},
		{
			Tool:        "ingest_hypothesis",
			Description: "Add a missing claim to the graph",
		},
	}
}

// ConflictActions returns the follow-up actions for a contradiction report.
func ConflictActions() []AvailableAction {
	return []AvailableAction{
		{
			Tool:        "connect_propositions",
			Description: "Record a refutes or contradicts relation for a new conflict",
		},
		{
			Tool:        "semantic_search",
			Description: "Explore the units surrounding the conflict",
		},
	}
}
