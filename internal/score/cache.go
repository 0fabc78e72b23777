package score

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// CachedTables memoizes lookup-table reads. The tables are immutable
// reference data, so a TTL cache in front of the store is safe and keeps
// repeated computations off the database.
type CachedTables struct {
	inner Tables
	cache *gocache.Cache
}

// NewCachedTables wraps tables with a TTL cache. A non-positive ttl
// disables expiry.
func NewCachedTables(inner Tables, ttl time.Duration) *CachedTables {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &CachedTables{
		inner: inner,
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

type weightsEntry struct {
	weights Weights
	found   bool
}

func (ct *CachedTables) Formula(category string, diff decimal.Decimal) (Weights, bool, error) {
	key := fmt.Sprintf("formula:%s:%s", category, diff.String())
	if cached, ok := ct.cache.Get(key); ok {
		entry := cached.(weightsEntry)
		return entry.weights, entry.found, nil
	}
	weights, found, err := ct.inner.Formula(category, diff)
	if err != nil {
		return Weights{}, false, err
	}
	ct.cache.SetDefault(key, weightsEntry{weights: weights, found: found})
	return weights, found, nil
}

type roundEntry struct {
	round decimal.Decimal
	found bool
}

func (ct *CachedTables) RoundNumber(sum decimal.Decimal) (decimal.Decimal, bool, error) {
	key := "round:" + sum.String()
	if cached, ok := ct.cache.Get(key); ok {
		entry := cached.(roundEntry)
		return entry.round, entry.found, nil
	}
	round, found, err := ct.inner.RoundNumber(sum)
	if err != nil {
		return decimal.Zero, false, err
	}
	ct.cache.SetDefault(key, roundEntry{round: round, found: found})
	return round, found, nil
}

func (ct *CachedTables) TakeoffCount(bump decimal.Decimal) (int, error) {
	key := "takeoff:" + bump.String()
	if cached, ok := ct.cache.Get(key); ok {
		return cached.(int), nil
	}
	count, err := ct.inner.TakeoffCount(bump)
	if err != nil {
		return 0, err
	}
	ct.cache.SetDefault(key, count)
	return count, nil
}

type descriptionEntry struct {
	description string
	found       bool
}

func (ct *CachedTables) Description(grade decimal.Decimal) (string, bool, error) {
	key := "description:" + grade.String()
	if cached, ok := ct.cache.Get(key); ok {
		entry := cached.(descriptionEntry)
		return entry.description, entry.found, nil
	}
	description, found, err := ct.inner.Description(grade)
	if err != nil {
		return "", false, err
	}
	ct.cache.SetDefault(key, descriptionEntry{description: description, found: found})
	return description, found, nil
}
