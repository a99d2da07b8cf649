package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadSimulatedDefaults(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "simulated")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ContractAddress == (common.Address{}) || cfg.DevAccount == (common.Address{}) {
		t.Fatalf("simulated backend should get default addresses: %+v", cfg)
	}
	if cfg.ConfirmTimeout != defaultConfirmTimeout || cfg.ReceiptPollInterval != defaultReceiptPollInterval {
		t.Fatalf("unexpected durations %v / %v", cfg.ConfirmTimeout, cfg.ReceiptPollInterval)
	}
	if cfg.DateLocation.String() != "UTC" {
		t.Fatalf("expected UTC, got %s", cfg.DateLocation)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "simulated")
	t.Setenv("CONFIRM_TIMEOUT", "90")
	t.Setenv("RECEIPT_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfirmTimeout != 90*time.Second || cfg.ReceiptPollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected durations %v / %v", cfg.ConfirmTimeout, cfg.ReceiptPollInterval)
	}

	t.Setenv("CONFIRM_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid duration to fail")
	}
}

func TestLoadRPCRequiresEndpointAndContract(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "rpc")
	t.Setenv("RPC_URL", "")
	t.Setenv("CONTRACT_ADDRESS", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing RPC_URL to fail")
	}

	t.Setenv("RPC_URL", "http://127.0.0.1:8545")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing CONTRACT_ADDRESS to fail")
	}

	t.Setenv("CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000c01")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ContractAddress != common.HexToAddress("0x0000000000000000000000000000000000000c01") {
		t.Fatalf("unexpected contract %s", cfg.ContractAddress)
	}
}

func TestLoadProductionRequiresStores(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "simulated")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected production without DATABASE_URL to fail")
	}
}

func TestLoadRejectsUnknownBackendAndZone(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown backend to fail")
	}

	t.Setenv("LEDGER_BACKEND", "simulated")
	t.Setenv("DATE_TIMEZONE", "Mars/Olympus_Mons")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown time zone to fail")
	}
}
