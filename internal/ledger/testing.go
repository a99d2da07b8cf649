package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SeedFund registers a fund directly in the simulated contract, bypassing the
// manager transaction. Intended for tests and local demos.
func SeedFund(s *Simulated, fundsAddress, manager common.Address, description string, fundsNeeded *big.Int, createdOn time.Time) {
	if fundsNeeded == nil {
		fundsNeeded = new(big.Int)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funds[fundsAddress] = &simFund{
		description: description,
		manager:     manager,
		createdOn:   big.NewInt(createdOn.Unix()),
		totalAmount: new(big.Int),
		fundsNeeded: new(big.Int).Set(fundsNeeded),
	}
}
