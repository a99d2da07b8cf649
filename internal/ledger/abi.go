package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract method names.
const (
	MethodFund       = "reliefFundsManagers"
	MethodDonate     = "donate"
	MethodRegister   = "addReliefFundsManager"
	MethodAddUsage   = "addUsage"
	MethodRemoveFund = "removeReliefFunds"
	MethodGetUsage   = "getUsage"
)

// ReliefFundsABI is the interface of the deployed relief funds contract.
const ReliefFundsABI = `[
  {"type":"function","name":"reliefFundsManagers","stateMutability":"view",
   "inputs":[{"name":"","type":"address"}],
   "outputs":[
     {"name":"description","type":"string"},
     {"name":"manager","type":"address"},
     {"name":"createdOn","type":"uint256"},
     {"name":"totalAmount","type":"uint256"},
     {"name":"fundsNeeded","type":"uint256"}]},
  {"type":"function","name":"donate","stateMutability":"payable",
   "inputs":[{"name":"fundsAddress","type":"address"}],"outputs":[]},
  {"type":"function","name":"addReliefFundsManager","stateMutability":"nonpayable",
   "inputs":[{"name":"fundsAddress","type":"address"},{"name":"description","type":"string"}],"outputs":[]},
  {"type":"function","name":"addUsage","stateMutability":"nonpayable",
   "inputs":[
     {"name":"fundsAddress","type":"address"},
     {"name":"reason","type":"string"},
     {"name":"val","type":"uint256"},
     {"name":"usedOn","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"removeReliefFunds","stateMutability":"nonpayable",
   "inputs":[{"name":"fundsAddress","type":"address"}],"outputs":[]},
  {"type":"function","name":"getUsage","stateMutability":"view",
   "inputs":[{"name":"fundsAddress","type":"address"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"val","type":"uint256"},
     {"name":"usedOn","type":"uint256"},
     {"name":"reason","type":"string"}]}]}
]`

var parsedABI = mustParseABI(ReliefFundsABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("ledger: invalid contract abi: " + err.Error())
	}
	return parsed
}
