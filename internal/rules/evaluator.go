// Package rules implements condition evaluation against library item
// snapshots. Evaluation is a pure function of the item and the conditions;
// all side effects live in the controllers.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/amaumene/sweeparr/internal/models"
)

// maxAgeDays stands in for a structurally absent "days since" value.
// Never-watched items are treated as older than any configurable threshold
// so age-based deletion rules match them. This is a deliberate, documented
// policy, not an implicit coercion.
const maxAgeDays = 999999

// ConditionResult records the per-condition outcome for diagnostics
type ConditionResult struct {
	Condition models.Condition
	Matched   bool
	Skipped   bool
	Err       string
}

// Evaluate tests an item against an ordered list of conditions combined
// under a single AND/OR operator. It returns the overall match plus the
// per-condition outcomes.
//
// A condition that references a field not present on the item's type fails
// closed: it is recorded as an error and treated as non-matching. A set
// condition with an empty comparison value is recorded as skipped and
// likewise never matches.
func Evaluate(item *models.LibraryItem, conditions []models.Condition, logic models.Logic, now time.Time) (bool, []ConditionResult) {
	if len(conditions) == 0 {
		return false, nil
	}

	results := make([]ConditionResult, 0, len(conditions))
	matched := logic != models.LogicOr

	for _, cond := range conditions {
		result := evaluateOne(item, cond, now)
		results = append(results, result)

		if logic == models.LogicOr {
			if result.Matched {
				matched = true
			}
		} else {
			if !result.Matched {
				matched = false
			}
		}
	}

	return matched, results
}

func evaluateOne(item *models.LibraryItem, cond models.Condition, now time.Time) ConditionResult {
	result := ConditionResult{Condition: cond}

	spec, ok := models.LookupField(cond.Field)
	if !ok {
		result.Err = fmt.Sprintf("unknown field %q", cond.Field)
		return result
	}
	if spec.Item != item.Type {
		result.Err = fmt.Sprintf("field %q not present on %s items", cond.Field, item.Type)
		return result
	}

	switch spec.Type {
	case models.FieldNumber:
		value, present := numberValue(item, spec, now)
		if !present {
			if !spec.AbsentIsMax {
				result.Err = fmt.Sprintf("field %q has no value", cond.Field)
				return result
			}
			value = maxAgeDays
		}
		result.Matched = compareNumber(value, cond.Operator, cond.Number)

	case models.FieldBoolean:
		value := booleanValue(item, spec)
		if cond.Operator == models.OpIsTrue {
			result.Matched = value
		} else {
			result.Matched = !value
		}

	case models.FieldSet:
		needle := strings.TrimSpace(cond.Value)
		if needle == "" {
			result.Skipped = true
			return result
		}
		// Membership is exact after trimming, case-insensitive. The policy
		// is asserted by tests; see TestSetMembershipCaseInsensitive.
		found := false
		for _, member := range item.Collections {
			if strings.EqualFold(strings.TrimSpace(member), needle) {
				found = true
				break
			}
		}
		if cond.Operator == models.OpIn {
			result.Matched = found
		} else {
			result.Matched = !found
		}
	}

	return result
}

func numberValue(item *models.LibraryItem, spec models.FieldSpec, now time.Time) (float64, bool) {
	switch spec.Name {
	case "movie.lastPlayedDays", "season.lastWatchedEpisodeDays":
		return item.DaysSinceEngaged(now)
	}
	return 0, false
}

func booleanValue(item *models.LibraryItem, spec models.FieldSpec) bool {
	switch spec.Name {
	case "movie.neverPlayed", "season.neverWatched":
		return item.LastEngagedAt == nil
	}
	return false
}
