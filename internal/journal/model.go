// Package journal keeps an audit trail of the transactions the gateway submitted.
// The ledger stays the source of truth; the journal is never read back to
// serve a gateway operation.
package journal

import (
	"errors"
	"time"
)

// State of a journaled transaction.
type State string

const (
	StateSubmitted State = "submitted"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Kinds of journaled transactions.
const (
	KindDonation     = "donation"
	KindRegistration = "registration"
	KindUsage        = "usage"
	KindClosure      = "closure"
)

// ErrEntryNotFound indicates an update for a hash that was never appended.
var ErrEntryNotFound = errors.New("journal entry not found")

// Entry records one submitted transaction.
type Entry struct {
	ID           string
	Hash         string
	Kind         string
	FundsAddress string
	Sender       string
	Amount       string
	State        State
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
