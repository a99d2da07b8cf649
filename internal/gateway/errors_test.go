package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/drfms/drfms/internal/ledger"
	"github.com/drfms/drfms/internal/units"
	"github.com/drfms/drfms/internal/wallet"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    Kind
		reason  string
		message string
	}{
		{
			name: "malformed amount",
			err:  fmt.Errorf("%w: %q is not a non-negative decimal", units.ErrMalformedAmount, "x"),
			kind: KindMalformedAmount,
		},
		{
			name: "missing provider",
			err:  wallet.ErrProviderMissing,
			kind: KindProviderMissing,
		},
		{
			name:    "agent rejection code",
			err:     fmt.Errorf("transact donate: %w", &wallet.AgentError{Code: wallet.CodeUserRejected, Message: "User denied transaction signature."}),
			kind:    KindUserRejected,
			message: "User denied transaction signature.",
		},
		{
			name:    "contract revert",
			err:     fmt.Errorf("call reliefFundsManagers: %w", ledger.NewRevertError(ledger.ReasonNotRegistered)),
			kind:    KindLedgerCallFailed,
			reason:  ledger.ReasonNotRegistered,
			message: "execution reverted: " + ledger.ReasonNotRegistered,
		},
		{
			name: "reverted receipt",
			err:  fmt.Errorf("%w: 0x01", ledger.ErrTransactionReverted),
			kind: KindLedgerCallFailed,
		},
		{
			name: "node unavailable",
			err:  fmt.Errorf("call getUsage: %w", ledger.ErrNodeUnavailable),
			kind: KindLedgerCallFailed,
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			kind: KindLedgerCallFailed,
		},
		{
			name:    "unauthorized account",
			err:     &wallet.AgentError{Code: wallet.CodeUnauthorized, Message: "The requested account has not been authorized by the user."},
			kind:    KindLedgerCallFailed,
			message: "The requested account has not been authorized by the user.",
		},
		{
			name: "anything else",
			err:  errors.New("dial tcp 127.0.0.1:8545: connection refused"),
			kind: KindLedgerCallFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(OpDonate, tt.err)
			if got.Kind != tt.kind {
				t.Fatalf("expected kind %s, got %s (%s)", tt.kind, got.Kind, got.Message)
			}
			if got.Reason != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, got.Reason)
			}
			if tt.message != "" && got.Message != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, got.Message)
			}
			if got.Op != OpDonate {
				t.Fatalf("expected op %s, got %s", OpDonate, got.Op)
			}
			if errors.Unwrap(got) != nil {
				t.Fatal("gateway errors must not expose the underlying error")
			}
		})
	}
}

func TestNormalizeKeepsGatewayErrors(t *testing.T) {
	original := &Error{Kind: KindNotFound, Message: "transaction 0x01 is not tracked"}
	got := normalize(OpTransaction, fmt.Errorf("lookup: %w", original))
	if got.Kind != KindNotFound || got.Message != original.Message || got.Op != OpTransaction {
		t.Fatalf("unexpected %+v", got)
	}
	if original.Op != "" {
		t.Fatal("normalize must not mutate the original error")
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := error(&Error{Kind: KindUserRejected, Op: OpDonate, Message: "User denied transaction signature."})
	if !errors.Is(err, ErrUserRejected) {
		t.Fatal("expected errors.Is to match on kind")
	}
	if errors.Is(err, ErrProviderMissing) {
		t.Fatal("different kinds must not match")
	}
	if err.Error() != "donate: User denied transaction signature." {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
