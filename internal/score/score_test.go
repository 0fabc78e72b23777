package score

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradehaus/gradeflow/internal/errors"
)

// fakeTables serves fixed lookup data without a database.
type fakeTables struct {
	formulas     map[string]Weights // keyed by category, any diff matches
	roundNumber  decimal.Decimal
	roundFound   bool
	takeoffCount int
	descriptions map[string]string // keyed by grade string
}

func (f *fakeTables) Formula(category string, diff decimal.Decimal) (Weights, bool, error) {
	weights, ok := f.formulas[category]
	return weights, ok, nil
}

func (f *fakeTables) RoundNumber(sum decimal.Decimal) (decimal.Decimal, bool, error) {
	return f.roundNumber, f.roundFound, nil
}

func (f *fakeTables) TakeoffCount(bump decimal.Decimal) (int, error) {
	return f.takeoffCount, nil
}

func (f *fakeTables) Description(grade decimal.Decimal) (string, bool, error) {
	desc, ok := f.descriptions[grade.String()]
	return desc, ok, nil
}

func weightsOf(w1, w2, w3, w4 float64) Weights {
	return Weights{
		W1: decimal.NewFromFloat(w1),
		W2: decimal.NewFromFloat(w2),
		W3: decimal.NewFromFloat(w3),
		W4: decimal.NewFromFloat(w4),
	}
}

func TestComputeEndToEnd(t *testing.T) {
	t.Parallel()

	// centering=9.5 corners=9.0 edges=9.5 surface=9.0: the two lowest axes
	// are corners and surface, diff=0, category CORNERS, weights
	// (0.4,0.3,0.2,0.1), roundNumber=9.5, bumpCount=1, takeoff=0.
	tables := &fakeTables{
		formulas:     map[string]Weights{"CORNERS": weightsOf(0.4, 0.3, 0.2, 0.1)},
		roundNumber:  decimal.NewFromFloat(9.5),
		roundFound:   true,
		takeoffCount: 1,
		descriptions: map[string]string{"9.5": "Gem Mint"},
	}
	engine := NewEngine(tables)

	result, err := engine.Compute("9.5", "9.0", "9.5", "9.0")
	require.NoError(t, err)
	assert.True(t, result.Grade.Equal(decimal.NewFromFloat(9.5)), "grade = %s", result.Grade)
	assert.Equal(t, CategoryCorners, result.Category)
	assert.Equal(t, "Gem Mint", result.Description)
	assert.True(t, result.Takeoff.IsZero())
	assert.Equal(t, 1, result.BumpCount)
}

func TestComputeDeterministic(t *testing.T) {
	t.Parallel()

	tables := &fakeTables{
		formulas:     map[string]Weights{"CORNERS": weightsOf(0.4, 0.3, 0.2, 0.1)},
		roundNumber:  decimal.NewFromFloat(9.5),
		roundFound:   true,
		takeoffCount: 3,
	}
	engine := NewEngine(tables)

	first, err := engine.Compute("9.5", "9.0", "9.5", "9.0")
	require.NoError(t, err)
	for range 10 {
		next, err := engine.Compute("9.5", "9.0", "9.5", "9.0")
		require.NoError(t, err)
		assert.True(t, first.Grade.Equal(next.Grade), "repeated computation must match")
	}
}

func TestComputeTakeoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		category  Category
		bumpCount int
		takeoff   string
	}{
		{"CornersBelowThreshold", CategoryCorners, 1, "0"},
		{"CornersAtThreshold", CategoryCorners, 2, "0"},
		{"CornersAboveThreshold", CategoryCorners, 5, "1.5"},
		{"SurfaceAndEdgesAboveThreshold", CategorySurfaceAndEdges, 3, "0.5"},
		{"CenteringBelowThreshold", CategoryCentering, 3, "0"},
		{"CenteringAboveThreshold", CategoryCentering, 6, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := takeoffAmount(tt.category, tt.bumpCount)
			want, err := decimal.NewFromString(tt.takeoff)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "takeoff = %s, want %s", got, want)
		})
	}
}

func TestComputeRoundNumberFallback(t *testing.T) {
	t.Parallel()

	// no rounding range matches, the documented default round number is 10
	tables := &fakeTables{
		formulas:   map[string]Weights{"CORNERS": weightsOf(0.4, 0.3, 0.2, 0.1)},
		roundFound: false,
	}
	engine := NewEngine(tables)

	result, err := engine.Compute("9.5", "9.0", "9.5", "9.0")
	require.NoError(t, err)
	assert.True(t, result.RoundNumber.Equal(decimal.NewFromInt(10)))
}

func TestComputeErrors(t *testing.T) {
	t.Parallel()

	t.Run("MissingAxis", func(t *testing.T) {
		t.Parallel()
		engine := NewEngine(&fakeTables{})
		_, err := engine.Compute("9.5", "", "9.5", "9.0")
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err), "missing axis must be a validation error")
	})

	t.Run("NonNumericAxis", func(t *testing.T) {
		t.Parallel()
		engine := NewEngine(&fakeTables{})
		_, err := engine.Compute("9.5", "mint", "9.5", "9.0")
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("FormulaNotFound", func(t *testing.T) {
		t.Parallel()
		engine := NewEngine(&fakeTables{formulas: map[string]Weights{}})
		_, err := engine.Compute("9.5", "9.0", "9.5", "9.0")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err), "formula miss must be fatal")
	})
}

func TestDefaultCategoryPolicy(t *testing.T) {
	t.Parallel()

	build := func(centering, corners, edges, surface string) []SubGrade {
		subGrades, err := buildSubGrades(centering, corners, edges, surface)
		require.NoError(t, err)
		return sortAscending(subGrades)
	}

	tests := []struct {
		name     string
		sorted   []SubGrade
		expected Category
	}{
		{"CenteringLowest", build("8.0", "9.0", "9.5", "9.5"), CategoryCentering},
		{"SurfaceAndEdgesLowest", build("9.5", "9.5", "8.5", "8.0"), CategorySurfaceAndEdges},
		{"CornersLowest", build("9.5", "8.0", "9.5", "9.0"), CategoryCorners},
		{"TieBreaksOnAxisOrder", build("9.0", "9.0", "9.0", "9.0"), CategoryCentering},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			diff := tt.sorted[1].Value.Sub(tt.sorted[0].Value)
			assert.Equal(t, tt.expected, DefaultCategoryPolicy(diff, tt.sorted))
		})
	}
}

func TestIsValidSubGrade(t *testing.T) {
	t.Parallel()

	valid := []float64{1.0, 1.5, 2.0, 5.5, 9.5, 10.0}
	for _, v := range valid {
		v := v
		assert.True(t, IsValidSubGrade(&v), "%v should be valid", v)
	}

	invalid := []float64{0.5, 10.5, 7.3, 9.25, 0, -1}
	for _, v := range invalid {
		v := v
		assert.False(t, IsValidSubGrade(&v), "%v should be invalid", v)
	}

	assert.True(t, IsValidSubGrade(nil), "absent sub-grade is permitted")
}
