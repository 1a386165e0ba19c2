package rules

import "github.com/amaumene/sweeparr/internal/models"

func compareNumber(fieldValue float64, op models.Operator, condValue float64) bool {
	switch op {
	case models.OpGreaterThan:
		return fieldValue > condValue
	case models.OpGreaterOrEqual:
		return fieldValue >= condValue
	case models.OpLessThan:
		return fieldValue < condValue
	case models.OpLessOrEqual:
		return fieldValue <= condValue
	case models.OpEqual:
		return fieldValue == condValue
	case models.OpNotEqual:
		return fieldValue != condValue
	}
	return false
}
