// Package filter describes structured pre-filters applied inside the vector index.
package filter

import (
	"fmt"
	"math"
	"strings"
)

// MaxConditions caps the number of conditions in one expression.
const MaxConditions = 32

// Expression is a conjunction of must and must-not conditions.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must)+len(mustNot) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 && len(e.mustNot) == 0 }

// And returns a copy of e with an extra must condition.
func (e Expression) And(c Condition) Expression {
	must := make([]Condition, 0, len(e.must)+1)
	must = append(must, e.must...)
	return Expression{must: append(must, c), mustNot: e.mustNot}
}

// Not returns a copy of e with an extra must-not condition.
func (e Expression) Not(c Condition) Expression {
	mustNot := make([]Condition, 0, len(e.mustNot)+1)
	mustNot = append(mustNot, e.mustNot...)
	return Expression{must: e.must, mustNot: append(mustNot, c)}
}

// Matches evaluates the expression against in-memory values. Used by backends
// that cannot push filters down to storage.
func (e Expression) Matches(tags map[string]string, numerics map[string]float64) bool {
	for _, c := range e.must {
		if !c.matches(tags, numerics) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.matches(tags, numerics) {
			return false
		}
	}
	return true
}

// Condition is either a tag equality or an inclusive numeric range. Tag
// equality is case-insensitive, matching TAG fields without CASESENSITIVE.
type Condition struct {
	key     string
	equals  string
	isRange bool
	min     float64
	max     float64
}

// Eq creates a tag equality condition.
func Eq(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, equals: value}, nil
}

// Between creates an inclusive numeric range condition.
func Between(key string, lo, hi float64) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if lo > hi {
		return Condition{}, fmt.Errorf("range for %q is empty: %g > %g", key, lo, hi)
	}
	return Condition{key: key, isRange: true, min: lo, max: hi}, nil
}

// AtLeast creates a numeric lower-bound condition.
func AtLeast(key string, lo float64) (Condition, error) { return Between(key, lo, math.Inf(1)) }

// AtMost creates a numeric upper-bound condition.
func AtMost(key string, hi float64) (Condition, error) { return Between(key, math.Inf(-1), hi) }

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Value returns the equality value.
func (c Condition) Value() string { return c.equals }

// IsRange reports whether this is a numeric range.
func (c Condition) IsRange() bool { return c.isRange }

// Bounds returns the inclusive range bounds; unbounded sides are ±Inf.
func (c Condition) Bounds() (lo, hi float64) { return c.min, c.max }

func (c Condition) matches(tags map[string]string, numerics map[string]float64) bool {
	if c.isRange {
		v, ok := numerics[c.key]
		return ok && v >= c.min && v <= c.max
	}
	return strings.EqualFold(tags[c.key], c.equals)
}
