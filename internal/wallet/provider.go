package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC methods served by a signing agent.
const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodSendTransaction = "eth_sendTransaction"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
)

var (
	// ErrProviderMissing indicates there is no signing agent to talk to.
	ErrProviderMissing = errors.New("signing agent not available")

	// ErrUserRejected indicates the user declined a connection or transaction prompt.
	ErrUserRejected = errors.New("user rejected the request")

	// ErrNotConnected indicates an operation needed a connected account.
	ErrNotConnected = errors.New("wallet not connected")
)

// Provider is the request interface exposed by a signing agent.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// RPCProvider talks to a signing agent over JSON-RPC.
type RPCProvider struct {
	client *rpc.Client
}

// NewRPCProvider wraps a connected RPC client.
func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

// Request issues a single JSON-RPC call and returns the raw result.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		return nil, err
	}
	return result, nil
}

// Close releases the underlying connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}

// TransactionArgs is the eth_sendTransaction parameter object.
type TransactionArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

// AgentError is a JSON-RPC error as reported by a signing agent. It satisfies
// rpc.Error and rpc.DataError.
type AgentError struct {
	Code    int
	Message string
	Data    any
}

func (e *AgentError) Error() string {
	return e.Message
}

// ErrorCode returns the JSON-RPC error code.
func (e *AgentError) ErrorCode() int {
	return e.Code
}

// ErrorData returns the error payload, if any.
func (e *AgentError) ErrorData() interface{} {
	return e.Data
}

// IsUserRejection reports whether err carries the EIP-1193 user rejection code.
func IsUserRejection(err error) bool {
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == CodeUserRejected
}

func parseAccounts(raw json.RawMessage) ([]string, error) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	out := make([]string, 0, len(accounts))
	for _, account := range accounts {
		if !common.IsHexAddress(account) {
			return nil, fmt.Errorf("agent returned invalid account %q", account)
		}
		out = append(out, common.HexToAddress(account).Hex())
	}
	return out, nil
}
