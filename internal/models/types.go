package models

// ItemType represents the kind of library item a rule acts on
type ItemType string

const (
	ItemTypeMovie  ItemType = "movie"
	ItemTypeSeason ItemType = "season"
)

// FieldType represents the value type of a condition field
type FieldType string

const (
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldSet     FieldType = "set"
)

// Operator represents a condition operator
type Operator string

const (
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpIsTrue         Operator = "IS_TRUE"
	OpIsFalse        Operator = "IS_FALSE"
	OpIn             Operator = "IN"
	OpNotIn          Operator = "NOT_IN"
)

// Logic represents the top-level combinator for a rule's conditions.
// Nesting is not supported; a rule is a flat list of conditions under
// a single AND or OR.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ActionType represents an action a rule can take on an item
type ActionType string

const (
	// Immediate actions
	ActionAddToCollection      ActionType = "ADD_TO_COLLECTION"
	ActionRemoveFromCollection ActionType = "REMOVE_FROM_COLLECTION"
	ActionSetTitleFormat       ActionType = "SET_TITLE_FORMAT"
	ActionClearTitleFormat     ActionType = "CLEAR_TITLE_FORMAT"

	// Delayed actions
	ActionDeleteViaRadarr ActionType = "DELETE_VIA_RADARR"
	ActionDeleteViaSonarr ActionType = "DELETE_VIA_SONARR"
	ActionDeleteInPlex    ActionType = "DELETE_IN_PLEX"
)

// CandidateState represents the lifecycle state of a candidate
type CandidateState string

const (
	StatePending   CandidateState = "pending"
	StateDue       CandidateState = "due"
	StateExecuted  CandidateState = "executed"
	StateCancelled CandidateState = "cancelled"
)

// Terminal reports whether the state accepts no further transitions
func (s CandidateState) Terminal() bool {
	return s == StateExecuted || s == StateCancelled
}

// Active reports whether the candidate still has pending work
func (s CandidateState) Active() bool {
	return s == StatePending || s == StateDue
}

// Outcome represents the result of one action execution attempt
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeDryRun  Outcome = "dry_run"
)
