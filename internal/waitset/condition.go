// Package waitset implements condition aggregation and blocking wait
// semantics over readers, guard conditions, and graph changes (§4.10):
// the building block pkg/hdds's Waitset API is built on.
package waitset

import "sync/atomic"

// Condition is anything a WaitSet can wait on. TriggerValue reports
// whether the condition is currently satisfied; it must be safe to
// call concurrently with any other Condition method.
type Condition interface {
	TriggerValue() bool
}

// GuardCondition is a sticky, manually triggered/reset boolean
// condition (§4.10), the same shape used by internal/graph's mutation
// guard so both can be aggregated by one WaitSet.
type GuardCondition struct {
	triggered atomic.Bool
}

// NewGuardCondition builds an untriggered guard condition.
func NewGuardCondition() *GuardCondition { return &GuardCondition{} }

// Trigger sets the condition.
func (g *GuardCondition) Trigger() { g.triggered.Store(true) }

// TriggerValue reports whether the condition is set.
func (g *GuardCondition) TriggerValue() bool { return g.triggered.Load() }

// Reset clears the condition.
func (g *GuardCondition) Reset() { g.triggered.Store(false) }

// PredicateCondition adapts an arbitrary predicate (e.g. "this reader's
// history cache is non-empty") into a Condition, so polling sources
// that have no natural trigger/reset lifecycle can still be attached to
// a WaitSet alongside GuardConditions (§4.10 "reader-has-data").
type PredicateCondition struct {
	predicate func() bool
}

// NewPredicateCondition wraps predicate as a Condition.
func NewPredicateCondition(predicate func() bool) *PredicateCondition {
	return &PredicateCondition{predicate: predicate}
}

// TriggerValue evaluates the wrapped predicate.
func (p *PredicateCondition) TriggerValue() bool {
	if p.predicate == nil {
		return false
	}
	return p.predicate()
}
