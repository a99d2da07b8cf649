package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Revert reasons emitted by the relief funds contract.
const (
	ReasonAlreadyRegistered = "Relief funds already registered"
	ReasonNotRegistered     = "Relief funds not registered"
	ReasonNotManager        = "Only the relief funds manager can perform this action"
	ReasonZeroDonation      = "Donation must be greater than zero"
	ReasonZeroAddress       = "Relief funds address cannot be zero"
)

type simFund struct {
	description string
	manager     common.Address
	createdOn   *big.Int
	totalAmount *big.Int
	fundsNeeded *big.Int
}

type simTx struct {
	hash  common.Hash
	from  common.Address
	value *big.Int
	data  []byte
}

// Simulated is a concurrency-safe, in-memory relief funds contract. It decodes
// the same calldata a node would receive, enforces the contract's rules and
// reports reverts with node-shaped errors.
type Simulated struct {
	mu       sync.RWMutex
	address  common.Address
	abi      abi.ABI
	now      func() time.Time
	funds    map[common.Address]*simFund
	usage    map[common.Address][]UsageEntry
	receipts map[common.Hash]*types.Receipt
	pending  []simTx
	automine bool
	nonce    uint64
	block    uint64
}

// NewSimulated deploys an in-memory contract at address. Transactions are
// mined as soon as they are sent until SetAutomine(false) is called.
func NewSimulated(address common.Address) *Simulated {
	return &Simulated{
		address:  address,
		abi:      parsedABI,
		now:      time.Now,
		funds:    make(map[common.Address]*simFund),
		usage:    make(map[common.Address][]UsageEntry),
		receipts: make(map[common.Hash]*types.Receipt),
		automine: true,
	}
}

// Address returns where the contract is deployed.
func (s *Simulated) Address() common.Address {
	return s.address
}

// SetClock overrides the block timestamp source.
func (s *Simulated) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetAutomine controls whether sent transactions are mined immediately.
func (s *Simulated) SetAutomine(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.automine = on
}

// Pending returns the number of sent but unmined transactions.
func (s *Simulated) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Mine includes every pending transaction in a new block. Transactions that
// no longer execute cleanly get a failed receipt.
func (s *Simulated) Mine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block++
	for _, tx := range s.pending {
		status := types.ReceiptStatusSuccessful
		if err := s.execute(tx.from, tx.value, tx.data, true); err != nil {
			status = types.ReceiptStatusFailed
		}
		s.receipts[tx.hash] = s.receipt(tx.hash, status)
	}
	s.pending = nil
}

// FailPending mines every pending transaction with a failed receipt and no
// state change, as if each ran out of gas.
func (s *Simulated) FailPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block++
	for _, tx := range s.pending {
		s.receipts[tx.hash] = s.receipt(tx.hash, types.ReceiptStatusFailed)
	}
	s.pending = nil
}

// CallContract implements Backend.
func (s *Simulated) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if call.To == nil || *call.To != s.address {
		return nil, nil
	}
	if len(call.Data) < 4 {
		return nil, NewRevertError("")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	method, err := s.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, NewRevertError("")
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, NewRevertError("")
	}

	switch method.Name {
	case MethodFund:
		f, ok := s.funds[args[0].(common.Address)]
		if !ok {
			return method.Outputs.Pack("", common.Address{}, new(big.Int), new(big.Int), new(big.Int))
		}
		return method.Outputs.Pack(f.description, f.manager, f.createdOn, f.totalAmount, f.fundsNeeded)
	case MethodGetUsage:
		entries := append([]UsageEntry{}, s.usage[args[0].(common.Address)]...)
		return method.Outputs.Pack(entries)
	default:
		// Calling a state-changing method only simulates it.
		return nil, s.execute(call.From, call.Value, call.Data, false)
	}
}

// TransactionReceipt implements Backend. Unknown and pending transactions
// report ethereum.NotFound.
func (s *Simulated) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// SendTransaction validates and accepts a transaction from from. Calls that
// would revert are rejected up front, as gas estimation does on a real node.
func (s *Simulated) SendTransaction(_ context.Context, from, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if to != s.address {
		return common.Hash{}, fmt.Errorf("no contract deployed at %s", to.Hex())
	}
	if value == nil {
		value = new(big.Int)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.execute(from, value, data, false); err != nil {
		return common.Hash{}, err
	}

	s.nonce++
	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, s.nonce)
	hash := crypto.Keccak256Hash(from.Bytes(), data, nonce)

	if !s.automine {
		s.pending = append(s.pending, simTx{hash: hash, from: from, value: new(big.Int).Set(value), data: append([]byte{}, data...)})
		return hash, nil
	}

	s.block++
	if err := s.execute(from, value, data, true); err != nil {
		s.receipts[hash] = s.receipt(hash, types.ReceiptStatusFailed)
		return hash, nil
	}
	s.receipts[hash] = s.receipt(hash, types.ReceiptStatusSuccessful)
	return hash, nil
}

// execute runs a state-changing call. With commit false it only checks that
// the call would succeed. Callers hold s.mu.
func (s *Simulated) execute(from common.Address, value *big.Int, data []byte, commit bool) error {
	if len(data) < 4 {
		return NewRevertError("")
	}
	method, err := s.abi.MethodById(data[:4])
	if err != nil {
		return NewRevertError("")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return NewRevertError("")
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() > 0 && !method.IsPayable() {
		return NewRevertError("")
	}

	fundsAddress := args[0].(common.Address)
	f, registered := s.funds[fundsAddress]

	switch method.Name {
	case MethodRegister:
		if fundsAddress == (common.Address{}) {
			return NewRevertError(ReasonZeroAddress)
		}
		if registered {
			return NewRevertError(ReasonAlreadyRegistered)
		}
		if commit {
			s.funds[fundsAddress] = &simFund{
				description: args[1].(string),
				manager:     from,
				createdOn:   big.NewInt(s.now().Unix()),
				totalAmount: new(big.Int),
				fundsNeeded: new(big.Int),
			}
		}

	case MethodDonate:
		if !registered {
			return NewRevertError(ReasonNotRegistered)
		}
		if value.Sign() <= 0 {
			return NewRevertError(ReasonZeroDonation)
		}
		if commit {
			f.totalAmount = new(big.Int).Add(f.totalAmount, value)
		}

	case MethodAddUsage:
		if !registered {
			return NewRevertError(ReasonNotRegistered)
		}
		if f.manager != from {
			return NewRevertError(ReasonNotManager)
		}
		if commit {
			s.usage[fundsAddress] = append(s.usage[fundsAddress], UsageEntry{
				Reason: args[1].(string),
				Val:    new(big.Int).Set(args[2].(*big.Int)),
				UsedOn: new(big.Int).Set(args[3].(*big.Int)),
			})
		}

	case MethodRemoveFund:
		if !registered {
			return NewRevertError(ReasonNotRegistered)
		}
		if f.manager != from {
			return NewRevertError(ReasonNotManager)
		}
		if commit {
			delete(s.funds, fundsAddress)
		}

	default:
		return errors.New("method is read-only")
	}
	return nil
}

func (s *Simulated) receipt(hash common.Hash, status uint64) *types.Receipt {
	return &types.Receipt{
		Status:            status,
		TxHash:            hash,
		ContractAddress:   common.Address{},
		CumulativeGasUsed: 21_000,
		GasUsed:           21_000,
		BlockNumber:       new(big.Int).SetUint64(s.block),
	}
}
