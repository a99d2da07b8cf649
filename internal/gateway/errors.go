package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/drfms/drfms/internal/ledger"
	"github.com/drfms/drfms/internal/notification"
	"github.com/drfms/drfms/internal/units"
	"github.com/drfms/drfms/internal/wallet"
)

// Kind classifies every failure that leaves the gateway.
type Kind string

const (
	KindProviderMissing    Kind = "provider_missing"
	KindUserRejected       Kind = "user_rejected"
	KindMalformedAmount    Kind = "malformed_amount"
	KindLedgerCallFailed   Kind = "ledger_call_failed"
	KindTransactionTimeout Kind = "transaction_timeout"
	KindInvalidAddress     Kind = "invalid_address"
	KindNotFound           Kind = "not_found"
)

// Error is the only error type returned by Service. It never wraps the
// underlying agent or node error; Reason carries a decoded revert reason
// verbatim when the contract supplied one.
type Error struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"-"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, gateway.ErrUserRejected) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrProviderMissing    = &Error{Kind: KindProviderMissing, Message: notification.InstallSigningAgentPrompt}
	ErrUserRejected       = &Error{Kind: KindUserRejected, Message: "user rejected the request"}
	ErrMalformedAmount    = &Error{Kind: KindMalformedAmount, Message: "malformed amount"}
	ErrLedgerCallFailed   = &Error{Kind: KindLedgerCallFailed, Message: "ledger call failed"}
	ErrTransactionTimeout = &Error{Kind: KindTransactionTimeout, Message: "transaction confirmation timed out"}
	ErrInvalidAddress     = &Error{Kind: KindInvalidAddress, Message: "invalid address"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
)

// AsError extracts the gateway error from err, if any.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// normalize maps err onto exactly one Kind.
func normalize(op string, err error) *Error {
	if gwErr, ok := AsError(err); ok {
		out := *gwErr
		if out.Op == "" {
			out.Op = op
		}
		return &out
	}

	switch {
	case errors.Is(err, units.ErrMalformedAmount):
		return &Error{Kind: KindMalformedAmount, Op: op, Message: err.Error()}
	case errors.Is(err, wallet.ErrProviderMissing):
		return &Error{Kind: KindProviderMissing, Op: op, Message: notification.InstallSigningAgentPrompt}
	case wallet.IsUserRejection(err):
		return &Error{Kind: KindUserRejected, Op: op, Message: agentMessage(err, "user rejected the request")}
	case errors.Is(err, ledger.ErrTransactionReverted):
		return &Error{Kind: KindLedgerCallFailed, Op: op, Message: "transaction reverted"}
	case errors.Is(err, ledger.ErrNodeUnavailable):
		return &Error{Kind: KindLedgerCallFailed, Op: op, Message: "ledger node unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindLedgerCallFailed, Op: op, Message: "deadline exceeded waiting for the ledger"}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindLedgerCallFailed, Op: op, Message: "request canceled"}
	}

	if reason, ok := revertReason(err); ok {
		msg := "execution reverted"
		if reason != "" {
			msg = fmt.Sprintf("execution reverted: %s", reason)
		}
		return &Error{Kind: KindLedgerCallFailed, Op: op, Message: msg, Reason: reason}
	}
	return &Error{Kind: KindLedgerCallFailed, Op: op, Message: agentMessage(err, err.Error())}
}

// revertReason decodes Error(string) revert data carried by a JSON-RPC error.
func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}
	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return "", false
	}
	raw, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return "", false
	}
	if len(raw) == 0 {
		return "", true
	}
	reason, unpackErr := abi.UnpackRevert(raw)
	if unpackErr != nil {
		return "", true
	}
	return reason, true
}

// agentMessage returns the innermost JSON-RPC error message, which is what the
// signing agent showed the user.
func agentMessage(err error, fallback string) string {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.Error() != "" {
		return rpcErr.Error()
	}
	return fallback
}

func invalidAddress(op, value string) *Error {
	return &Error{Kind: KindInvalidAddress, Op: op, Message: fmt.Sprintf("%q is not a ledger account address", value)}
}
