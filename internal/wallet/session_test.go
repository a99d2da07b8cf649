package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/drfms/drfms/internal/logging"
	"github.com/drfms/drfms/internal/notification"
)

var donor = common.HexToAddress("0x00000000000000000000000000000000000000d1")

type failingProvider struct {
	err error
}

func (p failingProvider) Request(context.Context, string, ...any) (json.RawMessage, error) {
	return nil, p.err
}

func TestProbeWithoutAuthorizedAccount(t *testing.T) {
	agent := NewMemoryAgent(donor, nil)
	session := NewSession(agent, nil, logging.Discard())

	if session.Probe(context.Background()) {
		t.Fatal("expected probe to report not connected")
	}
	snap := session.Snapshot()
	if snap.State != Disconnected || snap.Address != "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if agent.Calls(MethodRequestAccounts) != 0 {
		t.Fatal("probe must not prompt the user")
	}
}

func TestProbeWithAuthorizedAccount(t *testing.T) {
	agent := NewMemoryAgent(donor, nil)
	agent.Authorize()
	session := NewSession(agent, nil, logging.Discard())

	if !session.Probe(context.Background()) {
		t.Fatal("expected probe to connect")
	}
	snap := session.Snapshot()
	if snap.State != Connected || snap.Address != donor.Hex() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestProbeDropsRevokedAccount(t *testing.T) {
	agent := NewMemoryAgent(donor, nil)
	agent.Authorize()
	session := NewSession(agent, nil, logging.Discard())
	if !session.Probe(context.Background()) {
		t.Fatal("expected probe to connect")
	}

	agent.Revoke()
	if session.Probe(context.Background()) {
		t.Fatal("expected probe to report not connected after revocation")
	}
	snap := session.Snapshot()
	if snap.State != Disconnected || snap.Address != "" {
		t.Fatalf("stale session after revocation: %+v", snap)
	}
}

func TestProbeSwallowsProviderErrors(t *testing.T) {
	session := NewSession(failingProvider{err: errors.New("connection refused")}, nil, logging.Discard())

	if session.Probe(context.Background()) {
		t.Fatal("expected probe to report not connected")
	}
	if session.Snapshot().State != Disconnected {
		t.Fatal("session should stay disconnected")
	}
}

func TestConnect(t *testing.T) {
	agent := NewMemoryAgent(donor, nil)
	session := NewSession(agent, nil, logging.Discard())

	address, err := session.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if address != donor.Hex() {
		t.Fatalf("expected %s, got %s", donor.Hex(), address)
	}
	if session.Snapshot().State != Connected {
		t.Fatal("expected connected session")
	}
}

func TestConnectRejected(t *testing.T) {
	agent := NewMemoryAgent(donor, nil)
	agent.RejectConnections(true)
	session := NewSession(agent, nil, logging.Discard())

	_, err := session.Connect(context.Background())
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected ErrUserRejected, got %v", err)
	}
	snap := session.Snapshot()
	if snap.State != Disconnected || snap.Address != "" {
		t.Fatalf("rejected connect changed session: %+v", snap)
	}
}

func TestConnectUnreachableAgent(t *testing.T) {
	session := NewSession(failingProvider{err: errors.New("dial tcp: connection refused")}, nil, logging.Discard())

	if _, err := session.Connect(context.Background()); !errors.Is(err, ErrProviderMissing) {
		t.Fatalf("expected ErrProviderMissing, got %v", err)
	}
}

func TestNoProviderPromptsInstall(t *testing.T) {
	recorder := &notification.Recorder{}
	session := NewSession(nil, recorder, logging.Discard())

	if session.Snapshot().State != NoProvider {
		t.Fatalf("expected no_provider, got %s", session.Snapshot().State)
	}
	if session.Probe(context.Background()) {
		t.Fatal("probe without provider must not connect")
	}
	if _, err := session.Connect(context.Background()); !errors.Is(err, ErrProviderMissing) {
		t.Fatalf("expected ErrProviderMissing, got %v", err)
	}
	if _, err := session.Signer(context.Background()); !errors.Is(err, ErrProviderMissing) {
		t.Fatalf("expected ErrProviderMissing from signer, got %v", err)
	}
	if got := len(recorder.Messages(notification.KindInstallSigningAgent)); got != 3 {
		t.Fatalf("expected 3 install prompts, got %d", got)
	}
}

func TestSignerSendsThroughAgent(t *testing.T) {
	want := common.HexToHash("0xabc")
	var sent TransactionArgs
	agent := NewMemoryAgent(donor, func(_ context.Context, args TransactionArgs) (common.Hash, error) {
		sent = args
		return want, nil
	})
	session := NewSession(agent, nil, logging.Discard())

	if _, err := session.Signer(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before connect, got %v", err)
	}
	if _, err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	signer, err := session.Signer(context.Background())
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	hash, err := signer.SendTransaction(context.Background(), to, big.NewInt(5), []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if hash != want {
		t.Fatalf("expected hash %s, got %s", want, hash)
	}
	if sent.From != donor || sent.To == nil || *sent.To != to {
		t.Fatalf("unexpected transaction args %+v", sent)
	}
	if sent.Value == nil || sent.Value.ToInt().Int64() != 5 {
		t.Fatalf("unexpected value %v", sent.Value)
	}
}

func TestSignerTransactionRejected(t *testing.T) {
	agent := NewMemoryAgent(donor, func(context.Context, TransactionArgs) (common.Hash, error) {
		t.Fatal("rejected transaction must not be broadcast")
		return common.Hash{}, nil
	})
	agent.Authorize()
	agent.RejectTransactions(true)
	session := NewSession(agent, nil, logging.Discard())
	session.Probe(context.Background())

	signer, err := session.Signer(context.Background())
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	_, err = signer.SendTransaction(context.Background(), common.Address{}, nil, nil)
	if !IsUserRejection(err) {
		t.Fatalf("expected user rejection, got %v", err)
	}
}
