package query_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"

	"vaultcore/internal/config"
	"vaultcore/internal/core"
	"vaultcore/internal/custody"
	"vaultcore/internal/ledger"
	"vaultcore/internal/nav"
	"vaultcore/internal/query"
)

func newQueryFixture(t *testing.T) (*query.Service, *core.Vault, *ledger.MemLedger, *custody.MemCustodian) {
	t.Helper()
	shares := ledger.NewMemLedger()
	custodian := custody.NewMemCustodian(big.NewInt(0), big.NewInt(1_000_000))
	vault, err := core.NewVault(0, config.NewStatic(config.DefaultParams()), 6, nav.Rates{EntranceBps: 100}, shares, custodian, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	vault.SetClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) })
	return query.NewService(vault, shares, nil), vault, shares, custodian
}

// ============================================================================
// Test: read surface
// ============================================================================

func TestNavResponse_ReflectsLatestValuation(t *testing.T) {
	svc, vault, _, _ := newQueryFixture(t)

	if err := vault.UpdateValuation(big.NewInt(1_000_000)); err != nil {
		t.Fatalf("UpdateValuation: %v", err)
	}

	resp := svc.Nav()
	if resp.NavPerShare != "1000000000000000000" {
		t.Errorf("nav: got %s, want 1000000000000000000", resp.NavPerShare)
	}
	if resp.GrossAum != "1000000000000000000" {
		t.Errorf("aum: got %s, want 1000000000000000000", resp.GrossAum)
	}
	if resp.TotalSupply != "0" {
		t.Errorf("supply: got %s, want 0", resp.TotalSupply)
	}
	if resp.Suspended {
		t.Error("suspended on fresh vault")
	}
	if resp.AsOfSequence != 1 {
		t.Errorf("sequence: got %d, want 1", resp.AsOfSequence)
	}
}

func TestQueueViews_FollowDepositLifecycle(t *testing.T) {
	svc, vault, _, custodian := newQueryFixture(t)
	holder := uuid.New()

	if err := vault.UpdateValuation(big.NewInt(1_000_000)); err != nil {
		t.Fatalf("UpdateValuation: %v", err)
	}
	custodian.Fund(big.NewInt(500_000))
	if _, err := vault.Deposit(holder, big.NewInt(500_000), big.NewInt(0)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	lengths := svc.QueueLengths()
	if lengths.Deposits != 1 || lengths.Redemptions != 0 {
		t.Errorf("lengths: got %d/%d, want 1/0", lengths.Deposits, lengths.Redemptions)
	}

	pending := svc.PendingDeposits(0, 10)
	if len(pending.Entries) != 1 {
		t.Fatalf("pending entries: got %d, want 1", len(pending.Entries))
	}
	entry := pending.Entries[0]
	if entry.Holder != holder || entry.Amount != "500000" {
		t.Errorf("entry: got %+v", entry)
	}

	if _, err := vault.ProcessDeposits(10); err != nil {
		t.Fatalf("ProcessDeposits: %v", err)
	}
	if got := svc.QueueLengths().Deposits; got != 0 {
		t.Errorf("deposits after processing: got %d, want 0", got)
	}
}

func TestPosition_CombinesBalanceAndPending(t *testing.T) {
	svc, vault, shares, custodian := newQueryFixture(t)
	holder := uuid.New()

	if err := vault.UpdateValuation(big.NewInt(1_000_000)); err != nil {
		t.Fatalf("UpdateValuation: %v", err)
	}
	custodian.Fund(big.NewInt(500_000))
	if _, err := vault.Deposit(holder, big.NewInt(500_000), big.NewInt(0)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := vault.ProcessDeposits(10); err != nil {
		t.Fatalf("ProcessDeposits: %v", err)
	}

	pos := svc.Position(holder)
	if pos.Shares != shares.BalanceOf(holder).String() {
		t.Errorf("shares: got %s, want %s", pos.Shares, shares.BalanceOf(holder))
	}
	if pos.PendingDeposits != "0" || pos.PendingRedemptions != "0" {
		t.Errorf("pending: got %s/%s, want 0/0", pos.PendingDeposits, pos.PendingRedemptions)
	}
}

func TestFeesResponse_ReportsRatesAndAccruals(t *testing.T) {
	svc, vault, _, custodian := newQueryFixture(t)
	holder := uuid.New()

	if err := vault.UpdateValuation(big.NewInt(1_000_000)); err != nil {
		t.Fatalf("UpdateValuation: %v", err)
	}
	custodian.Fund(big.NewInt(1_000_000))
	if _, err := vault.Deposit(holder, big.NewInt(1_000_000), big.NewInt(0)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := vault.ProcessDeposits(10); err != nil {
		t.Fatalf("ProcessDeposits: %v", err)
	}

	resp := svc.Fees()
	if resp.EntranceBps != 100 {
		t.Errorf("entrance bps: got %d, want 100", resp.EntranceBps)
	}
	// 1% of a 1.0 deposit, normalized.
	if resp.Entrance != "10000000000000000" {
		t.Errorf("accrued entrance: got %s, want 10000000000000000", resp.Entrance)
	}
	if resp.Total != resp.Entrance {
		t.Errorf("total: got %s, want %s", resp.Total, resp.Entrance)
	}
}

func TestEmergencyResponse(t *testing.T) {
	svc, vault, shares, _ := newQueryFixture(t)
	holder := uuid.New()
	shares.Mint(holder, big.NewInt(1000))

	if err := vault.UpdateValuation(big.NewInt(1_000_000)); err != nil {
		t.Fatalf("UpdateValuation: %v", err)
	}

	if resp := svc.Emergency(); resp.Active {
		t.Fatal("active before activation")
	}
	if _, err := vault.ActivateEmergency(); err != nil {
		t.Fatalf("ActivateEmergency: %v", err)
	}

	resp := svc.Emergency()
	if !resp.Active {
		t.Fatal("not active after activation")
	}
	if resp.Snapshot != "1000000000000000000" {
		t.Errorf("snapshot: got %s, want 1000000000000000000", resp.Snapshot)
	}
	if resp.Distributed != "0" || resp.Remaining != resp.Snapshot {
		t.Errorf("got distributed %s, remaining %s", resp.Distributed, resp.Remaining)
	}
}
