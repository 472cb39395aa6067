// Package krb manages Kerberos ticket-granting tickets across one or more
// credential caches: discovery of existing caches, password authentication,
// renewal, and ticket state tracking.
package krb

import "time"

// TicketState classifies a ticket-granting ticket's validity.
type TicketState int

const (
	// StateInvalid means no credential was obtained, or retrieval failed.
	StateInvalid TicketState = iota
	// StateActive means the ticket is valid right now.
	StateActive
	// StateExpired means the ticket's lifetime ran out but it can still
	// be renewed.
	StateExpired
	// StateOutdated means the renewable lifetime ran out too; only a
	// fresh authentication helps.
	StateOutdated
)

// String returns the string representation of a ticket state.
func (s TicketState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateOutdated:
		return "outdated"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Ticket is a snapshot of a principal's ticket-granting ticket. The state
// is never stored; it is derived from the timestamps whenever consulted.
type Ticket struct {
	Principal  string
	Realm      string
	Starts     time.Time
	Expires    time.Time
	RenewUntil time.Time
}

// State returns the ticket's state at the current time.
func (t Ticket) State() TicketState {
	return t.StateAt(time.Now())
}

// StateAt returns the ticket's state at a given time. The expiry boundary
// is inclusive (a ticket expiring exactly now is still active) and the
// renewal boundary is too (renewable exactly until now means expired, not
// outdated).
func (t Ticket) StateAt(now time.Time) TicketState {
	if t.Principal == "" || t.Expires.IsZero() {
		return StateInvalid
	}
	if now.After(t.RenewUntil) {
		return StateOutdated
	}
	if now.After(t.Expires) {
		return StateExpired
	}
	return StateActive
}
