package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	contractAddr = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	fundAddr     = common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	managerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	donorAddr    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

type simSigner struct {
	from common.Address
	sim  *Simulated
}

func (s simSigner) Address() common.Address { return s.from }

func (s simSigner) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	return s.sim.SendTransaction(ctx, s.from, to, value, data)
}

func bindAs(t *testing.T, sim *Simulated, from common.Address) *Contract {
	t.Helper()
	var signer Signer
	if from != (common.Address{}) {
		signer = simSigner{from: from, sim: sim}
	}
	c, err := Deployment{Address: sim.Address(), Backend: sim}.Bind(signer)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return c
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func TestSimulatedRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(contractAddr)
	created := time.Date(2023, 3, 5, 12, 0, 0, 0, time.UTC)
	sim.SetClock(func() time.Time { return created })

	manager := bindAs(t, sim, managerAddr)
	if _, err := manager.RegisterManager(ctx, fundAddr, "Flood relief"); err != nil {
		t.Fatalf("register: %v", err)
	}

	rec, err := bindAs(t, sim, common.Address{}).Fund(ctx, fundAddr)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if rec.Description != "Flood relief" || rec.Manager != managerAddr {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.CreatedOn.Int64() != created.Unix() {
		t.Fatalf("expected createdOn %d, got %s", created.Unix(), rec.CreatedOn)
	}
	if rec.TotalAmount.Sign() != 0 {
		t.Fatalf("expected empty fund, got %s", rec.TotalAmount)
	}
}

func TestSimulatedUnknownFundIsZeroRecord(t *testing.T) {
	sim := NewSimulated(contractAddr)
	rec, err := bindAs(t, sim, common.Address{}).Fund(context.Background(), fundAddr)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if rec.Manager != (common.Address{}) || rec.Description != "" {
		t.Fatalf("expected zero record, got %+v", rec)
	}
}

func TestSimulatedDuplicateRegistrationReverts(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(contractAddr)
	manager := bindAs(t, sim, managerAddr)

	if _, err := manager.RegisterManager(ctx, fundAddr, "Flood relief"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := manager.RegisterManager(ctx, fundAddr, "Flood relief again")

	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected rpc.DataError, got %v", err)
	}
	raw, err := hexutil.Decode(dataErr.ErrorData().(string))
	if err != nil {
		t.Fatalf("decode revert data: %v", err)
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		t.Fatalf("unpack revert: %v", err)
	}
	if reason != ReasonAlreadyRegistered {
		t.Fatalf("expected %q, got %q", ReasonAlreadyRegistered, reason)
	}
}

func TestSimulatedUsageOnlyByManager(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(contractAddr)
	ledgerTime := big.NewInt(1678017600)

	if _, err := bindAs(t, sim, managerAddr).RegisterManager(ctx, fundAddr, "Flood relief"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := bindAs(t, sim, donorAddr).AddUsage(ctx, fundAddr, "tents", ether(1), ledgerTime); err == nil {
		t.Fatal("expected non-manager usage to revert")
	}

	manager := bindAs(t, sim, managerAddr)
	if _, err := manager.AddUsage(ctx, fundAddr, "medical supplies", ether(2), ledgerTime); err != nil {
		t.Fatalf("add usage: %v", err)
	}
	if _, err := manager.AddUsage(ctx, fundAddr, "water", ether(1), ledgerTime); err != nil {
		t.Fatalf("add usage: %v", err)
	}

	entries, err := bindAs(t, sim, common.Address{}).Usage(ctx, fundAddr)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Reason != "medical supplies" || entries[1].Reason != "water" {
		t.Fatalf("usage not in insertion order: %+v", entries)
	}
	if entries[0].Val.Cmp(ether(2)) != 0 || entries[0].UsedOn.Cmp(ledgerTime) != 0 {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
}

func TestSimulatedRemoveFund(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(contractAddr)
	SeedFund(sim, fundAddr, managerAddr, "Flood relief", big.NewInt(100), time.Now())

	if _, err := bindAs(t, sim, donorAddr).RemoveFund(ctx, fundAddr); err == nil {
		t.Fatal("expected unauthorized close to revert")
	}
	if _, err := bindAs(t, sim, managerAddr).RemoveFund(ctx, fundAddr); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := bindAs(t, sim, donorAddr).Donate(ctx, fundAddr, ether(1)); err == nil {
		t.Fatal("expected donation to closed fund to revert")
	}
}

func TestReadOnlyHandleCannotTransact(t *testing.T) {
	sim := NewSimulated(contractAddr)
	if _, err := bindAs(t, sim, common.Address{}).Donate(context.Background(), fundAddr, ether(1)); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestBindRequiresDeployment(t *testing.T) {
	if _, err := (Deployment{}).Bind(nil); !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("expected ErrNotDeployed, got %v", err)
	}
}

func TestSimulatedConcurrentDonations(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(contractAddr)
	SeedFund(sim, fundAddr, managerAddr, "Flood relief", nil, time.Now())

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := Deployment{Address: sim.Address(), Backend: sim}.Bind(simSigner{from: donorAddr, sim: sim})
			if err != nil {
				t.Errorf("bind: %v", err)
				return
			}
			if _, err := c.Donate(ctx, fundAddr, ether(1)); err != nil {
				t.Errorf("donate: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := bindAs(t, sim, common.Address{}).Fund(ctx, fundAddr)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if rec.TotalAmount.Cmp(ether(workers)) != 0 {
		t.Fatalf("expected total %s, got %s", ether(workers), rec.TotalAmount)
	}
}

func TestSimulatedValueOnlyForPayableMethods(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(contractAddr)
	SeedFund(sim, fundAddr, managerAddr, "Flood relief", nil, time.Now())

	if _, err := bindAs(t, sim, donorAddr).Donate(ctx, fundAddr, ether(2)); err != nil {
		t.Fatalf("donate is payable: %v", err)
	}
	rec, err := bindAs(t, sim, common.Address{}).Fund(ctx, fundAddr)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if rec.TotalAmount.Cmp(ether(2)) != 0 {
		t.Fatalf("expected total %s, got %s", ether(2), rec.TotalAmount)
	}

	other := common.HexToAddress("0x0000000000000000000000000000000000000bbb")
	if _, err := bindAs(t, sim, managerAddr).transact(ctx, ether(1), MethodRegister, other, "Drought relief"); err == nil {
		t.Fatal("value sent to a non-payable method must revert")
	}
}
