// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvmap

type Decision uint8

const (
	DecisionNone Decision = iota
	DecisionAbort
	DecisionRemove
	DecisionPut
	DecisionRepeat
)

func (v Decision) String() string {
	switch v {
	case DecisionNone:
		return "none"
	case DecisionAbort:
		return "abort"
	case DecisionRemove:
		return "remove"
	case DecisionPut:
		return "put"
	case DecisionRepeat:
		return "repeat"
	}
	return "unknown"
}

// DecisionMaker resolves how an existing and a proposed value combine during
// an optimistic update. An instance is consulted by MVMap.Operate: Decide is
// called at least once per logical attempt and can be called again after a
// CAS conflict, hence it must be re-callable after Reset. Instances are for
// sequential reuse only, never for concurrent use.
type DecisionMaker interface {
	// Decide chooses the outcome for one key. Calling it again without an
	// intervening Reset is a call-discipline violation.
	Decide(existingValue, providedValue interface{}) Decision

	// SelectValue provides the value to store for DecisionPut. The default
	// behavior is to return (providedValue).
	SelectValue(existingValue, providedValue interface{}) interface{}

	// OnPageReplaced is invoked exactly once per page rewrite that was
	// successfully published, and never for a failed CAS attempt.
	OnPageReplaced()

	// Reset clears the decision and per-attempt scratch state.
	Reset()
}

// PageRewriter is an optional upgrade interface for decision makers that
// rewrite a whole leaf in one pass before per-key decisions apply.
type PageRewriter interface {
	// RewritePage inspects the leaf at the head of (tip) and returns either
	// the very same chain (nothing to change) or a new chain whose head is a
	// replacement page, possibly with some ancestors collapsed.
	RewritePage(tip *CursorPos, key interface{}) *CursorPos
}

// DefaultDecisionMaker stores the provided value, treating nil as removal.
var DefaultDecisionMaker DecisionMaker = defaultDecisionMaker{}

type defaultDecisionMaker struct{}

func (defaultDecisionMaker) Decide(existingValue, providedValue interface{}) Decision {
	if providedValue == nil {
		return DecisionRemove
	}
	return DecisionPut
}

func (defaultDecisionMaker) SelectValue(existingValue, providedValue interface{}) interface{} {
	return providedValue
}

func (defaultDecisionMaker) OnPageReplaced() {}

func (defaultDecisionMaker) Reset() {}
