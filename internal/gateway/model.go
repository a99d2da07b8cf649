// Package gateway is the single entry point between callers and the relief
// funds ledger. It owns the wallet session, turns intents into contract calls,
// tracks donation confirmations and reports every failure as an *Error.
package gateway

import "time"

// Operation names, used in errors, logs and metrics.
const (
	OpConnect        = "connect"
	OpSearchFund     = "search_fund"
	OpDonate         = "donate"
	OpAddFundManager = "add_fund_manager"
	OpAddUsage       = "add_usage"
	OpCloseFund      = "close_fund"
	OpListUsage      = "list_usage"
	OpTransaction    = "transaction"
	OpJournal        = "journal"
)

// TxState is the lifecycle state of a submitted donation.
type TxState string

const (
	TxSubmitted TxState = "submitted"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
)

// ReliefFund is a fund as currently recorded on the ledger. Unregistered
// addresses come back with Registered false and zero values.
type ReliefFund struct {
	FundsAddress  string    `json:"funds_address"`
	Description   string    `json:"description"`
	Manager       string    `json:"manager"`
	CreatedOn     time.Time `json:"created_on"`
	CreatedOnDate string    `json:"created_on_date"`
	FundsNeeded   string    `json:"funds_needed"`
	TotalAmount   string    `json:"total_amount"`
	Registered    bool      `json:"registered"`
}

// UsageRecord is one usage entry with its amount and date converted for display.
type UsageRecord struct {
	FundsAddress string `json:"funds_address"`
	UsedOn       string `json:"used_on"`
	Amount       string `json:"amount"`
	Reason       string `json:"reason"`
}

// TransactionHandle follows one donation from submission to settlement.
type TransactionHandle struct {
	Hash         string     `json:"hash"`
	FundsAddress string     `json:"funds_address"`
	From         string     `json:"from"`
	Amount       string     `json:"amount"`
	State        TxState    `json:"state"`
	Failure      *Error     `json:"error,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
}

// WriteResult is returned by writes that complete on submission.
type WriteResult struct {
	Hash string `json:"hash"`
}
