package score

import (
	"github.com/shopspring/decimal"
)

var (
	minSubGrade  = decimal.NewFromInt(1)
	maxSubGrade  = decimal.NewFromInt(10)
	subGradeStep = decimal.NewFromFloat(0.5)
)

// IsValidSubGrade reports whether a sub-grade value is acceptable: absent
// (nil) is permitted, otherwise the value must lie in [1.0, 10.0] in exact
// 0.5 increments.
func IsValidSubGrade(value *float64) bool {
	if value == nil {
		return true
	}
	d := decimal.NewFromFloat(*value)
	if d.LessThan(minSubGrade) || d.GreaterThan(maxSubGrade) {
		return false
	}
	return d.Mod(subGradeStep).IsZero()
}
