package models

import (
	"fmt"
	"strings"
	"time"
)

// Condition is a single typed test against a library item field.
// The operator must belong to the field type's operator set and the value
// member matching the field type must be populated; both are enforced at
// rule-save time so evaluation never sees a malformed condition.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`

	// Number carries the comparison value for number fields
	Number float64 `json:"number,omitempty"`

	// Value carries the comparison string for set fields
	Value string `json:"value,omitempty"`
}

// Action is one configured rule action. DelayDays is only meaningful for
// delayed actions; zero means due on the next scheduler tick.
type Action struct {
	Type           ActionType `json:"type"`
	DelayDays      int        `json:"delay_days,omitempty"`
	CollectionName string     `json:"collection_name,omitempty"`
	TitleFormat    string     `json:"title_format,omitempty"`
}

// Rule pairs a library with conditions and the actions to take on matches
type Rule struct {
	ID               uint64 `boltholdKey:"ID"`
	LibraryID        string `boltholdIndex:"LibraryID"`
	Name             string
	Enabled          bool
	DryRun           bool
	Logic            Logic
	Conditions       []Condition
	ImmediateActions []Action
	DelayedActions   []Action

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidationError describes a malformed rule, surfaced synchronously at
// save time
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule: %s: %s", e.Field, e.Reason)
}

var immediateActionTypes = map[ActionType]bool{
	ActionAddToCollection:      true,
	ActionRemoveFromCollection: true,
	ActionSetTitleFormat:       true,
	ActionClearTitleFormat:     true,
}

var delayedActionTypes = map[ActionType]bool{
	ActionDeleteViaRadarr:      true,
	ActionDeleteViaSonarr:      true,
	ActionDeleteInPlex:         true,
	ActionRemoveFromCollection: true,
	ActionClearTitleFormat:     true,
}

// Validate checks the rule's shape: known typed fields, operators drawn
// from each field type's set, values present where the type needs one, and
// required action parameters. A rule that fails here never reaches
// evaluation.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if r.LibraryID == "" {
		return &ValidationError{Field: "library_id", Reason: "must not be empty"}
	}
	if r.Logic != LogicAnd && r.Logic != LogicOr {
		return &ValidationError{Field: "logic", Reason: fmt.Sprintf("unknown logic operator %q", r.Logic)}
	}
	if len(r.Conditions) == 0 {
		return &ValidationError{Field: "conditions", Reason: "at least one condition is required"}
	}

	for i, cond := range r.Conditions {
		spec, ok := LookupField(cond.Field)
		if !ok {
			return &ValidationError{
				Field:  fmt.Sprintf("conditions[%d].field", i),
				Reason: fmt.Sprintf("unknown field %q", cond.Field),
			}
		}
		if !OperatorAllowed(spec.Type, cond.Operator) {
			return &ValidationError{
				Field:  fmt.Sprintf("conditions[%d].operator", i),
				Reason: fmt.Sprintf("operator %q not valid for %s field %q", cond.Operator, spec.Type, cond.Field),
			}
		}
		if spec.Type == FieldSet && strings.TrimSpace(cond.Value) == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("conditions[%d].value", i),
				Reason: "set comparison value must not be empty",
			}
		}
	}

	for i, action := range r.ImmediateActions {
		if !immediateActionTypes[action.Type] {
			return &ValidationError{
				Field:  fmt.Sprintf("immediate_actions[%d].type", i),
				Reason: fmt.Sprintf("%q is not an immediate action", action.Type),
			}
		}
		if err := validateActionParams(action, fmt.Sprintf("immediate_actions[%d]", i)); err != nil {
			return err
		}
	}

	for i, action := range r.DelayedActions {
		if !delayedActionTypes[action.Type] {
			return &ValidationError{
				Field:  fmt.Sprintf("delayed_actions[%d].type", i),
				Reason: fmt.Sprintf("%q is not a delayed action", action.Type),
			}
		}
		if action.DelayDays < 0 {
			return &ValidationError{
				Field:  fmt.Sprintf("delayed_actions[%d].delay_days", i),
				Reason: "must not be negative",
			}
		}
		if err := validateActionParams(action, fmt.Sprintf("delayed_actions[%d]", i)); err != nil {
			return err
		}
	}

	return nil
}

func validateActionParams(action Action, prefix string) error {
	switch action.Type {
	case ActionAddToCollection, ActionRemoveFromCollection:
		if strings.TrimSpace(action.CollectionName) == "" {
			return &ValidationError{Field: prefix + ".collection_name", Reason: "required for collection actions"}
		}
	case ActionSetTitleFormat:
		if action.TitleFormat == "" {
			return &ValidationError{Field: prefix + ".title_format", Reason: "required for SET_TITLE_FORMAT"}
		}
	}
	return nil
}

// MaxDelayDays returns the largest configured delay across the rule's
// delayed actions
func (r *Rule) MaxDelayDays() int {
	max := 0
	for _, action := range r.DelayedActions {
		if action.DelayDays > max {
			max = action.DelayDays
		}
	}
	return max
}
