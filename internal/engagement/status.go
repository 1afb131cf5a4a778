// Package engagement contains the pure business logic for the engagement
// service: the offer/application lifecycle, conversation-room provisioning,
// and the acceptance workflow. It is transport-agnostic.
//
// Valid status graph:
//
//	SENT ──► ACCEPTED
//	  │
//	  └────► DECLINED
//
// APPLIED is the creation state of an application and counts as accepted
// from the moment the record exists. ACCEPTED, DECLINED and APPLIED are
// terminal states.
package engagement

import "fmt"

// Status values mirror the engagement_status enum in PostgreSQL.
type Status string

const (
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusApplied  Status = "APPLIED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusSent: {StatusAccepted, StatusDeclined},
	// ACCEPTED, DECLINED and APPLIED are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusSent, StatusAccepted, StatusDeclined, StatusApplied:
		return st, nil
	}
	return "", fmt.Errorf("unknown engagement status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every status allowed to move to target. The
// workflow feeds this to the store's conditional update so the state machine
// stays the single source of truth for what the update may overwrite.
func TransitionSources(to Status) []Status {
	var out []Status
	for from, tos := range validTransitions {
		for _, t := range tos {
			if t == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// IsTerminal returns true when the status has no outgoing transitions.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// IsAccepted returns true for the two statuses that mean "the candidate is
// in": an accepted offer or an application (accepted on creation).
func IsAccepted(s Status) bool { return s == StatusAccepted || s == StatusApplied }
