package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrReadOnly occurs when a write is attempted through a handle bound without a signer.
	ErrReadOnly = errors.New("ledger: handle is read-only")

	// ErrTransactionReverted indicates a mined transaction whose receipt reports failure.
	ErrTransactionReverted = errors.New("ledger: transaction reverted")

	// ErrNotDeployed indicates a deployment without an address or backend.
	ErrNotDeployed = errors.New("ledger: contract deployment not configured")
)

// Backend is the read side of the ledger node. *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer submits transactions through the user's signing agent.
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

// FundRecord is the on-chain relief fund entry.
type FundRecord struct {
	Description string
	Manager     common.Address
	CreatedOn   *big.Int
	TotalAmount *big.Int
	FundsNeeded *big.Int
}

// UsageEntry is one on-chain usage record. Field names follow the contract's
// tuple components.
type UsageEntry struct {
	Val    *big.Int
	UsedOn *big.Int
	Reason string
}

// Deployment identifies the contract instance every handle is scoped to.
type Deployment struct {
	Address common.Address
	Backend Backend
}

// Bind builds a handle on the deployment. A nil signer yields a read-only handle.
func (d Deployment) Bind(signer Signer) (*Contract, error) {
	if d.Backend == nil || d.Address == (common.Address{}) {
		return nil, ErrNotDeployed
	}
	return &Contract{address: d.Address, abi: parsedABI, backend: d.Backend, signer: signer}, nil
}

// Contract is a handle bound to one deployment and, optionally, one signer.
type Contract struct {
	address common.Address
	abi     abi.ABI
	backend Backend
	signer  Signer
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Fund looks up the relief fund registered at fundsAddress. Unregistered
// addresses come back as a zero record, as the contract's mapping getter does.
func (c *Contract) Fund(ctx context.Context, fundsAddress common.Address) (FundRecord, error) {
	out, err := c.call(ctx, MethodFund, fundsAddress)
	if err != nil {
		return FundRecord{}, err
	}
	var rec FundRecord
	if err := c.abi.UnpackIntoInterface(&rec, MethodFund, out); err != nil {
		return FundRecord{}, fmt.Errorf("decode %s: %w", MethodFund, err)
	}
	return rec, nil
}

// Usage lists usage records for fundsAddress in ledger order.
func (c *Contract) Usage(ctx context.Context, fundsAddress common.Address) ([]UsageEntry, error) {
	out, err := c.call(ctx, MethodGetUsage, fundsAddress)
	if err != nil {
		return nil, err
	}
	values, err := c.abi.Unpack(MethodGetUsage, out)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", MethodGetUsage, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("decode %s: expected 1 value, got %d", MethodGetUsage, len(values))
	}
	entries := *abi.ConvertType(values[0], new([]UsageEntry)).(*[]UsageEntry)
	return entries, nil
}

// Donate transfers value to fundsAddress through the contract.
func (c *Contract) Donate(ctx context.Context, fundsAddress common.Address, value *big.Int) (common.Hash, error) {
	return c.transact(ctx, value, MethodDonate, fundsAddress)
}

// RegisterManager registers fundsAddress with the caller as its manager.
func (c *Contract) RegisterManager(ctx context.Context, fundsAddress common.Address, description string) (common.Hash, error) {
	return c.transact(ctx, nil, MethodRegister, fundsAddress, description)
}

// AddUsage records how val of the fund's money was used on usedOn (epoch seconds).
func (c *Contract) AddUsage(ctx context.Context, fundsAddress common.Address, reason string, val, usedOn *big.Int) (common.Hash, error) {
	return c.transact(ctx, nil, MethodAddUsage, fundsAddress, reason, val, usedOn)
}

// RemoveFund closes the relief fund at fundsAddress.
func (c *Contract) RemoveFund(ctx context.Context, fundsAddress common.Address) (common.Hash, error) {
	return c.transact(ctx, nil, MethodRemoveFund, fundsAddress)
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &c.address, Data: input}
	if c.signer != nil {
		msg.From = c.signer.Address()
	}
	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

func (c *Contract) transact(ctx context.Context, value *big.Int, method string, args ...any) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, ErrReadOnly
	}
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode %s: %w", method, err)
	}
	hash, err := c.signer.SendTransaction(ctx, c.address, value, input)
	if err != nil {
		return common.Hash{}, fmt.Errorf("transact %s: %w", method, err)
	}
	return hash, nil
}
