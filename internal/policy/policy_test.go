package policy_test

import (
	"testing"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/policy"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		name           string
		kind           domain.EventKind
		summaryPresent bool
		want           policy.Action
	}{
		{"created with summary", domain.EventCreated, true, policy.ActionApplyDelta},
		{"created without summary", domain.EventCreated, false, policy.ActionInvalidate},
		{"updated with summary", domain.EventUpdated, true, policy.ActionInvalidate},
		{"updated without summary", domain.EventUpdated, false, policy.ActionInvalidate},
		{"deleted with summary", domain.EventDeleted, true, policy.ActionInvalidate},
		{"deleted without summary", domain.EventDeleted, false, policy.ActionInvalidate},
		{"unknown kind", domain.EventKind("REPLACED"), true, policy.ActionIgnore},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Decide(tc.kind, tc.summaryPresent); got != tc.want {
				t.Errorf("Decide(%s, %v) = %s, want %s", tc.kind, tc.summaryPresent, got, tc.want)
			}
		})
	}
}
