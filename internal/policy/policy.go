// Package policy decides, per incoming event, whether the cached summary
// can be patched incrementally or must be discarded.
package policy

import "github.com/fzanetti/ledger-analytics-go/internal/domain"

// Action is the effective consistency action for one event.
type Action string

const (
	// ActionApplyDelta patches the existing summary and refreshes the cache.
	ActionApplyDelta Action = "APPLY_DELTA"
	// ActionInvalidate evicts the cache entry; the durable record is left
	// in place but must not be trusted until the next full recompute.
	// Safe to apply any number of times in any order.
	ActionInvalidate Action = "INVALIDATE"
	// ActionIgnore acknowledges the event without any mutation.
	ActionIgnore Action = "IGNORE"
)

// Decide maps (event kind, summary presence) to an action.
//
// CREATED with a summary present is the only incremental path. CREATED
// without prior state invalidates rather than fabricating a summary from
// one event. UPDATED and DELETED can retroactively change any derived
// field, which no delta patch can represent, so they always invalidate.
func Decide(kind domain.EventKind, summaryPresent bool) Action {
	switch kind {
	case domain.EventCreated:
		if summaryPresent {
			return ActionApplyDelta
		}
		return ActionInvalidate
	case domain.EventUpdated, domain.EventDeleted:
		return ActionInvalidate
	default:
		return ActionIgnore
	}
}
