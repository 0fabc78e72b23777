// Package score implements the final-grade computation pipeline: sub-grade
// ordering, formula selection, weighted sum, rounding-table lookup and the
// takeoff correction. The engine is a pure function of its four inputs and
// the lookup tables it is given.
package score

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gradehaus/gradeflow/internal/errors"
	"github.com/gradehaus/gradeflow/internal/logging"
)

// Axis identifies one of the four condition axes.
type Axis string

const (
	AxisCentering Axis = "CENTER"
	AxisCorners   Axis = "CORNERS"
	AxisEdges     Axis = "EDGES"
	AxisSurface   Axis = "SURFACE"
)

// axisOrder fixes the tie-break precedence for equal sub-grade values.
func (a Axis) order() int {
	switch a {
	case AxisCentering:
		return 0
	case AxisCorners:
		return 1
	case AxisEdges:
		return 2
	case AxisSurface:
		return 3
	default:
		return 4
	}
}

// Category is the formula category selected from the lowest sub-grades.
type Category string

const (
	CategoryCentering       Category = "CENTERING"
	CategoryCorners         Category = "CORNERS"
	CategorySurfaceAndEdges Category = "SURFACE_AND_EDGES"
)

// SubGrade pairs a sub-grade value with the axis it was scored on.
// Duplicate values across axes are permitted; the axis keeps them distinct.
type SubGrade struct {
	Value decimal.Decimal
	Axis  Axis
}

// Weights is the weight quadruple applied to the ascending-sorted sub-grades.
type Weights struct {
	W1, W2, W3, W4 decimal.Decimal
}

// CategoryPolicy selects the formula category from the diff value and the
// ascending-sorted sub-grades. The exact tie-break rule is configuration,
// not hidden logic; DefaultCategoryPolicy documents the shipped rule.
type CategoryPolicy func(diff decimal.Decimal, sorted []SubGrade) Category

// DefaultCategoryPolicy decides by the lowest axes: centering lowest selects
// CENTERING; when both of the two lowest axes are surface or edges the
// category is SURFACE_AND_EDGES; every other combination selects CORNERS.
// Ties between equal values resolve by the fixed axis precedence
// CENTER < CORNERS < EDGES < SURFACE.
func DefaultCategoryPolicy(diff decimal.Decimal, sorted []SubGrade) Category {
	lowest := sorted[0].Axis
	second := sorted[1].Axis
	switch {
	case lowest == AxisCentering:
		return CategoryCentering
	case isSurfaceOrEdges(lowest) && isSurfaceOrEdges(second):
		return CategorySurfaceAndEdges
	default:
		return CategoryCorners
	}
}

func isSurfaceOrEdges(a Axis) bool {
	return a == AxisSurface || a == AxisEdges
}

// Result carries the computed grade together with the bump metadata that
// the certification audit trail records.
type Result struct {
	Grade       decimal.Decimal
	Description string
	Category    Category
	RoundNumber decimal.Decimal
	Bump        decimal.Decimal
	BumpCount   int
	Takeoff     decimal.Decimal
}

// Engine computes final grades against a set of lookup tables.
type Engine struct {
	tables Tables
	policy CategoryPolicy
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCategoryPolicy replaces the default formula category policy.
func WithCategoryPolicy(policy CategoryPolicy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// NewEngine creates a scoring engine over the given lookup tables.
func NewEngine(tables Tables, opts ...Option) *Engine {
	engine := &Engine{
		tables: tables,
		policy: DefaultCategoryPolicy,
		logger: logging.ForService("score"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

var (
	two            = decimal.NewFromInt(2)
	maxRoundNumber = decimal.NewFromInt(10)
)

// Compute derives the final grade from the four sub-grade inputs. All four
// inputs are required; a missing or blank axis fails the call. The result
// is deterministic for identical inputs and identical table contents.
func (e *Engine) Compute(centering, corners, edges, surface string) (Result, error) {
	subGrades, err := buildSubGrades(centering, corners, edges, surface)
	if err != nil {
		return Result{}, err
	}

	sorted := sortAscending(subGrades)
	diff := sorted[1].Value.Sub(sorted[0].Value)

	category := e.policy(diff, sorted)
	weights, found, err := e.tables.Formula(string(category), diff)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, errors.Newf("no grade formula found for category %s and diff %s", category, diff).
			Component("score").
			Category(errors.CategoryNotFound).
			Context("formula_category", string(category)).
			Context("diff", diff.String()).
			Build()
	}

	formulaSum := weightedSum(sorted, weights)

	roundNumber, found, err := e.tables.RoundNumber(formulaSum)
	if err != nil {
		return Result{}, err
	}
	if !found {
		// documented fallback: an unmatched formula sum rounds to 10
		roundNumber = maxRoundNumber
	}

	bump := roundNumber.Sub(sorted[0].Value)
	bumpCount, err := e.tables.TakeoffCount(bump)
	if err != nil {
		return Result{}, err
	}

	takeoff := takeoffAmount(category, bumpCount)
	grade := roundNumber.Sub(takeoff)

	description, _, err := e.tables.Description(grade)
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("final grade computed",
		"category", category,
		"diff", diff.String(),
		"formula_sum", formulaSum.String(),
		"round_number", roundNumber.String(),
		"bump_count", bumpCount,
		"takeoff", takeoff.String(),
		"grade", grade.String())

	return Result{
		Grade:       grade,
		Description: description,
		Category:    category,
		RoundNumber: roundNumber,
		Bump:        bump,
		BumpCount:   bumpCount,
		Takeoff:     takeoff,
	}, nil
}

// buildSubGrades parses the four inputs into (value, axis) pairs. Blank
// inputs are dropped, which downstream surfaces as a sub-grade count error.
func buildSubGrades(centering, corners, edges, surface string) ([]SubGrade, error) {
	inputs := []struct {
		raw  string
		axis Axis
	}{
		{centering, AxisCentering},
		{corners, AxisCorners},
		{edges, AxisEdges},
		{surface, AxisSurface},
	}

	subGrades := make([]SubGrade, 0, len(inputs))
	for _, input := range inputs {
		raw := strings.TrimSpace(input.raw)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Newf("sub-grade %q on axis %s is not a number", raw, input.axis).
				Component("score").
				Category(errors.CategoryValidation).
				Context("axis", string(input.axis)).
				Build()
		}
		subGrades = append(subGrades, SubGrade{Value: value, Axis: input.axis})
	}

	if len(subGrades) != 4 {
		return nil, errors.Newf("expected 4 sub-grades, got %d", len(subGrades)).
			Component("score").
			Category(errors.CategoryValidation).
			Context("sub_grade_count", len(subGrades)).
			Build()
	}
	return subGrades, nil
}

// sortAscending orders sub-grades by value, ties resolved by the fixed
// axis precedence so the ordering is deterministic.
func sortAscending(subGrades []SubGrade) []SubGrade {
	sorted := make([]SubGrade, len(subGrades))
	copy(sorted, subGrades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value.Equal(sorted[j].Value) {
			return sorted[i].Axis.order() < sorted[j].Axis.order()
		}
		return sorted[i].Value.LessThan(sorted[j].Value)
	})
	return sorted
}

// weightedSum computes sum(sorted[i] * w(i+1)) over the ascending order.
func weightedSum(sorted []SubGrade, weights Weights) decimal.Decimal {
	return sorted[0].Value.Mul(weights.W1).
		Add(sorted[1].Value.Mul(weights.W2)).
		Add(sorted[2].Value.Mul(weights.W3)).
		Add(sorted[3].Value.Mul(weights.W4))
}

// takeoffAmount applies the category-specific bump correction at 2-decimal
// precision, round half to even.
func takeoffAmount(category Category, bumpCount int) decimal.Decimal {
	threshold := 2
	if category == CategoryCentering {
		threshold = 4
	}
	if bumpCount < threshold {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(bumpCount - threshold)).
		Div(two).
		RoundBank(2)
}
