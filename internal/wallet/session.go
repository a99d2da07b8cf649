package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/drfms/drfms/internal/notification"
)

// State is the connection state of a wallet session.
type State int

const (
	// NoProvider means no signing agent exists for the lifetime of the session.
	NoProvider State = iota
	Disconnected
	Connected
)

func (s State) String() string {
	switch s {
	case NoProvider:
		return "no_provider"
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	Address string
	State   State
}

// Session tracks the signing agent and the account it has authorized.
// Address is non-empty exactly when State is Connected.
type Session struct {
	provider Provider
	notifier notification.Notifier
	logger   *slog.Logger

	mu      sync.RWMutex
	state   State
	address string
}

// NewSession builds a session over provider. A nil provider yields a session
// that stays in NoProvider.
func NewSession(provider Provider, notifier notification.Notifier, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	state := Disconnected
	if provider == nil {
		state = NoProvider
	}
	return &Session{
		provider: provider,
		notifier: notifier,
		logger:   logger.With("component", "wallet"),
		state:    state,
	}
}

// Snapshot returns the current address and state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Address: s.address, State: s.state}
}

// Probe asks the agent for accounts already authorized, without prompting.
// It never fails: errors are logged and reported as not connected.
func (s *Session) Probe(ctx context.Context) bool {
	if s.provider == nil {
		s.promptInstall(ctx)
		return false
	}

	raw, err := s.provider.Request(ctx, MethodAccounts)
	if err != nil {
		s.logger.Warn("probe signing agent", "error", err)
		return false
	}
	accounts, err := parseAccounts(raw)
	if err != nil {
		s.logger.Warn("probe signing agent", "error", err)
		return false
	}
	if len(accounts) == 0 {
		s.logger.Debug("no account has granted access")
		s.setDisconnected()
		return false
	}

	s.setConnected(accounts[0])
	return true
}

// Connect explicitly requests account authorization, which may prompt the
// user. On failure the session is left unchanged.
func (s *Session) Connect(ctx context.Context) (string, error) {
	if s.provider == nil {
		s.promptInstall(ctx)
		return "", ErrProviderMissing
	}

	raw, err := s.provider.Request(ctx, MethodRequestAccounts)
	if err != nil {
		if IsUserRejection(err) {
			return "", fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		s.logger.Error("connect signing agent", "error", err)
		return "", fmt.Errorf("%w: %v", ErrProviderMissing, err)
	}
	accounts, err := parseAccounts(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderMissing, err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("%w: no account was authorized", ErrUserRejected)
	}

	s.setConnected(accounts[0])
	s.logger.Info("wallet connected", "address", accounts[0])
	return accounts[0], nil
}

// Provider returns the signing agent, prompting the user to install one when
// there is none.
func (s *Session) Provider(ctx context.Context) (Provider, error) {
	if s.provider == nil {
		s.promptInstall(ctx)
		return nil, ErrProviderMissing
	}
	return s.provider, nil
}

// Signer returns a signer for the connected account.
func (s *Session) Signer(ctx context.Context) (*Signer, error) {
	provider, err := s.Provider(ctx)
	if err != nil {
		return nil, err
	}
	snap := s.Snapshot()
	if snap.State != Connected {
		return nil, ErrNotConnected
	}
	return &Signer{provider: provider, from: common.HexToAddress(snap.Address)}, nil
}

func (s *Session) setConnected(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = address
	s.state = Connected
}

// setDisconnected drops an address the agent no longer reports as authorized.
func (s *Session) setDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Connected {
		s.logger.Info("signing agent revoked access", "address", s.address)
	}
	s.address = ""
	s.state = Disconnected
}

func (s *Session) promptInstall(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.Message{
		Kind: notification.KindInstallSigningAgent,
		Body: notification.InstallSigningAgentPrompt,
	}); err != nil {
		s.logger.Warn("send install prompt", "error", err)
	}
}
