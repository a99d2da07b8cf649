package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Signer submits transactions on behalf of one connected account. The agent
// holds the key; the signer only forwards requests.
type Signer struct {
	provider Provider
	from     common.Address
}

// Address returns the account transactions are sent from.
func (s *Signer) Address() common.Address {
	return s.from
}

// SendTransaction asks the agent to sign and broadcast a call to to, returning
// the transaction hash once the agent accepts it.
func (s *Signer) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	args := TransactionArgs{From: s.from, To: &to, Data: data}
	if value != nil && value.Sign() > 0 {
		args.Value = (*hexutil.Big)(value)
	}

	raw, err := s.provider.Request(ctx, MethodSendTransaction, args)
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("decode transaction hash: %w", err)
	}
	return hash, nil
}
