package score

import (
	"github.com/shopspring/decimal"

	"github.com/gradehaus/gradeflow/internal/datastore"
)

// Tables is the read-only lookup data the engine computes against. Absent
// rows are reported explicitly via the bool return, never as errors.
type Tables interface {
	// Formula returns the weight quadruple for a category whose closed
	// range contains diff.
	Formula(category string, diff decimal.Decimal) (Weights, bool, error)
	// RoundNumber returns the round number whose closed range contains sum.
	RoundNumber(sum decimal.Decimal) (decimal.Decimal, bool, error)
	// TakeoffCount counts the takeoff thresholds at or below bump.
	TakeoffCount(bump decimal.Decimal) (int, error)
	// Description maps a final grade to its human-readable description.
	Description(grade decimal.Decimal) (string, bool, error)
}

// StoreTables adapts the datastore lookup queries to the Tables interface.
type StoreTables struct {
	Store datastore.Interface
}

// NewStoreTables wraps a datastore as the engine's lookup source.
func NewStoreTables(store datastore.Interface) *StoreTables {
	return &StoreTables{Store: store}
}

func (st *StoreTables) Formula(category string, diff decimal.Decimal) (Weights, bool, error) {
	value, _ := diff.Float64()
	row, found, err := st.Store.FindFormula(category, value)
	if err != nil || !found {
		return Weights{}, found, err
	}
	return Weights{
		W1: decimal.NewFromFloat(row.W1),
		W2: decimal.NewFromFloat(row.W2),
		W3: decimal.NewFromFloat(row.W3),
		W4: decimal.NewFromFloat(row.W4),
	}, true, nil
}

func (st *StoreTables) RoundNumber(sum decimal.Decimal) (decimal.Decimal, bool, error) {
	value, _ := sum.Float64()
	round, found, err := st.Store.FindRoundNumber(value)
	if err != nil || !found {
		return decimal.Zero, found, err
	}
	return decimal.NewFromFloat(round), true, nil
}

func (st *StoreTables) TakeoffCount(bump decimal.Decimal) (int, error) {
	value, _ := bump.Float64()
	return st.Store.CountTakeoffsAtOrBelow(value)
}

func (st *StoreTables) Description(grade decimal.Decimal) (string, bool, error) {
	value, _ := grade.Float64()
	return st.Store.FindDescription(value)
}
