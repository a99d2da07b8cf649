package infra

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// NewLedgerClient dials the ledger node and verifies it answers.
func NewLedgerClient(ctx context.Context, url string) (*ethclient.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("ledger rpc url is required")
	}

	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial ledger node: %w", err)
	}
	client := ethclient.NewClient(rc)

	if _, err := client.ChainID(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("query ledger chain id: %w", err)
	}

	return client, nil
}

// NewSignerClient dials the signing agent's JSON-RPC endpoint. The agent is
// not queried here: it may legitimately refuse until the user connects.
func NewSignerClient(ctx context.Context, url string) (*rpc.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("signer url is required")
	}

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial signing agent: %w", err)
	}

	return client, nil
}
