package main

import (
	"context"
	"log/slog"

	"github.com/drfms/drfms/internal/config"
	"github.com/drfms/drfms/internal/infra"
	"github.com/drfms/drfms/internal/ledger"
	"github.com/drfms/drfms/internal/notification"
	"github.com/drfms/drfms/internal/wallet"
)

// ledgerStack is the session and contract deployment every command works against.
type ledgerStack struct {
	session    *wallet.Session
	deployment ledger.Deployment
	breaker    *ledger.BreakerBackend
	closers    []func()
}

func (s *ledgerStack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildLedger connects to the configured ledger backend. The simulated
// backend keeps the contract in memory and signs with an in-process agent
// holding cfg.DevAccount.
func buildLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (*ledgerStack, error) {
	notifier := notification.NewLoggerNotifier(logger)

	if cfg.LedgerBackend == config.LedgerBackendSimulated {
		sim := ledger.NewSimulated(cfg.ContractAddress)
		agent := wallet.NewMemoryAgent(cfg.DevAccount, wallet.BroadcastTo(sim))
		agent.Authorize()
		logger.Warn("using the in-memory simulated ledger; state is lost on exit", "dev_account", cfg.DevAccount.Hex())
		return &ledgerStack{
			session:    wallet.NewSession(agent, notifier, logger),
			deployment: ledger.Deployment{Address: cfg.ContractAddress, Backend: sim},
		}, nil
	}

	stack := &ledgerStack{}
	client, err := infra.NewLedgerClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	stack.closers = append(stack.closers, client.Close)
	stack.breaker = ledger.NewBreakerBackend(client, "ledger-rpc", logger)
	stack.deployment = ledger.Deployment{Address: cfg.ContractAddress, Backend: stack.breaker}

	var provider wallet.Provider
	if cfg.SignerURL != "" {
		rc, err := infra.NewSignerClient(ctx, cfg.SignerURL)
		if err != nil {
			stack.Close()
			return nil, err
		}
		agent := wallet.NewRPCProvider(rc)
		stack.closers = append(stack.closers, agent.Close)
		provider = agent
	} else {
		logger.Warn("SIGNER_URL is not set; writes will ask for a signing agent")
	}
	stack.session = wallet.NewSession(provider, notifier, logger)

	return stack, nil
}
