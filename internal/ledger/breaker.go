package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	cb "github.com/sony/gobreaker"
)

// ErrNodeUnavailable is returned while the breaker refuses calls to the ledger node.
var ErrNodeUnavailable = errors.New("ledger: node unavailable")

// BreakerBackend fails fast while the ledger node keeps failing. Reverts and
// pending receipts are answers from a healthy node and do not count as failures.
type BreakerBackend struct {
	next Backend
	cb   *cb.CircuitBreaker
}

// NewBreakerBackend wraps next with a circuit breaker named name.
func NewBreakerBackend(next Backend, name string, logger *slog.Logger) *BreakerBackend {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 5 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.25
	}
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ethereum.NotFound) || isNodeAnswer(err)
	}
	if logger != nil {
		st.OnStateChange = func(name string, from, to cb.State) {
			logger.Warn("ledger breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		}
	}
	return &BreakerBackend{next: next, cb: cb.NewCircuitBreaker(st)}
}

// CallContract implements Backend.
func (b *BreakerBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.CallContract(ctx, call, blockNumber)
	})
	if err != nil {
		return nil, tripped(err)
	}
	return out.([]byte), nil
}

// TransactionReceipt implements Backend.
func (b *BreakerBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.TransactionReceipt(ctx, txHash)
	})
	if err != nil {
		return nil, tripped(err)
	}
	return out.(*types.Receipt), nil
}

// State reports the breaker state, e.g. for health checks.
func (b *BreakerBackend) State() string {
	return b.cb.State().String()
}

func tripped(err error) error {
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrNodeUnavailable, err)
	}
	return err
}

func isNodeAnswer(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeExecutionReverted
}
