package ledger

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// codeExecutionReverted is the JSON-RPC error code nodes use for reverted calls.
const codeExecutionReverted = 3

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// RevertError is a contract revert as reported by a node: code 3 with the
// ABI-encoded Error(string) payload as hex data.
type RevertError struct {
	reason string
	data   string
}

// NewRevertError encodes reason the way a node would report it.
func NewRevertError(reason string) *RevertError {
	stringType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		return &RevertError{reason: reason, data: hexutil.Encode(revertSelector)}
	}
	return &RevertError{reason: reason, data: hexutil.Encode(append(append([]byte{}, revertSelector...), packed...))}
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.reason
}

// ErrorCode implements rpc.Error.
func (e *RevertError) ErrorCode() int {
	return codeExecutionReverted
}

// ErrorData implements rpc.DataError.
func (e *RevertError) ErrorData() interface{} {
	return e.data
}
