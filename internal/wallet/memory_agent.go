package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// SendFunc broadcasts a transaction approved by a MemoryAgent.
type SendFunc func(ctx context.Context, args TransactionArgs) (common.Hash, error)

// Broadcaster accepts signed transactions. *ledger.Simulated satisfies it.
type Broadcaster interface {
	SendTransaction(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

// BroadcastTo returns a SendFunc that hands approved transactions to b.
func BroadcastTo(b Broadcaster) SendFunc {
	return func(ctx context.Context, args TransactionArgs) (common.Hash, error) {
		var to common.Address
		if args.To != nil {
			to = *args.To
		}
		var value *big.Int
		if args.Value != nil {
			value = args.Value.ToInt()
		}
		return b.SendTransaction(ctx, args.From, to, value, args.Data)
	}
}

// MemoryAgent is an in-process signing agent holding a single account. It
// answers the same requests a browser wallet would and is used by the
// simulated ledger backend and in tests.
type MemoryAgent struct {
	mu           sync.Mutex
	account      common.Address
	authorized   bool
	rejectAccess bool
	rejectTx     bool
	send         SendFunc
	calls        map[string]int
}

// NewMemoryAgent creates an agent for account. The account is not authorized
// until Authorize is called or a connection request is approved.
func NewMemoryAgent(account common.Address, send SendFunc) *MemoryAgent {
	return &MemoryAgent{account: account, send: send, calls: make(map[string]int)}
}

// Authorize marks the account as already authorized for this origin.
func (a *MemoryAgent) Authorize() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authorized = true
}

// Revoke withdraws the account's authorization, as when the user disconnects
// the site from the agent.
func (a *MemoryAgent) Revoke() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authorized = false
}

// RejectConnections makes the user decline connection prompts.
func (a *MemoryAgent) RejectConnections(reject bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejectAccess = reject
}

// RejectTransactions makes the user decline transaction prompts.
func (a *MemoryAgent) RejectTransactions(reject bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejectTx = reject
}

// Calls returns how many times method was requested.
func (a *MemoryAgent) Calls(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method]
}

// Request implements Provider.
func (a *MemoryAgent) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	a.mu.Lock()
	a.calls[method]++
	account, authorized := a.account, a.authorized
	rejectAccess, rejectTx, send := a.rejectAccess, a.rejectTx, a.send
	a.mu.Unlock()

	switch method {
	case MethodAccounts:
		if !authorized {
			return json.Marshal([]string{})
		}
		return json.Marshal([]string{strings.ToLower(account.Hex())})

	case MethodRequestAccounts:
		if rejectAccess {
			return nil, &AgentError{Code: CodeUserRejected, Message: "User rejected the request."}
		}
		a.Authorize()
		return json.Marshal([]string{strings.ToLower(account.Hex())})

	case MethodSendTransaction:
		if len(params) != 1 {
			return nil, &AgentError{Code: -32602, Message: "expected a single transaction object"}
		}
		args, err := toTransactionArgs(params[0])
		if err != nil {
			return nil, &AgentError{Code: -32602, Message: err.Error()}
		}
		if !authorized || args.From != account {
			return nil, &AgentError{Code: CodeUnauthorized, Message: "The requested account has not been authorized by the user."}
		}
		if rejectTx {
			return nil, &AgentError{Code: CodeUserRejected, Message: "User denied transaction signature."}
		}
		if send == nil {
			return nil, &AgentError{Code: -32603, Message: "agent is not connected to a network"}
		}
		hash, err := send(ctx, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hash)

	default:
		return nil, &AgentError{Code: CodeUnsupportedMethod, Message: fmt.Sprintf("method %s is not supported", method)}
	}
}

func toTransactionArgs(param any) (TransactionArgs, error) {
	if args, ok := param.(TransactionArgs); ok {
		return args, nil
	}
	raw, err := json.Marshal(param)
	if err != nil {
		return TransactionArgs{}, err
	}
	var args TransactionArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return TransactionArgs{}, fmt.Errorf("decode transaction: %w", err)
	}
	return args, nil
}
