package vat_test

import (
	"math/big"
	"reflect"
	"testing"

	"VaultCore/internal/fixedpoint"
	"VaultCore/internal/vat"
)

const (
	ilk    = "ETH-A"
	holder = "vault/engine"
	buffer = "vault/buffer"
	vow    = "vault/vow"
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fixedpoint.Wad)
}

// ============================================================================
// Test: collateral
// ============================================================================

func TestSlipAndLock(t *testing.T) {
	m := vat.NewMemory()

	if err := m.Slip(ilk, holder, wad(500)); err != nil {
		t.Fatalf("slip: %v", err)
	}
	if got := m.FreeCollateral(ilk, holder); got.Cmp(wad(500)) != 0 {
		t.Errorf("free: got %s, want %s", got, wad(500))
	}

	if err := m.Lock(ilk, holder, wad(500)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := m.FreeCollateral(ilk, holder); got.Sign() != 0 {
		t.Errorf("free after lock: got %s, want 0", got)
	}
	urn := m.Urn(ilk, holder)
	if urn.LockedCollateral.Cmp(wad(500)) != 0 {
		t.Errorf("locked: got %s, want %s", urn.LockedCollateral, wad(500))
	}
}

func TestLock_InsufficientFree(t *testing.T) {
	m := vat.NewMemory()
	m.Slip(ilk, holder, wad(10))

	if err := m.Lock(ilk, holder, wad(11)); err == nil {
		t.Fatal("expected lock to fail")
	}
	// Failed lock leaves both buckets untouched
	if got := m.FreeCollateral(ilk, holder); got.Cmp(wad(10)) != 0 {
		t.Errorf("free: got %s, want %s", got, wad(10))
	}
	if got := m.Urn(ilk, holder).LockedCollateral; got.Sign() != 0 {
		t.Errorf("locked: got %s, want 0", got)
	}
}

// ============================================================================
// Test: debt transfer
// ============================================================================

func TestTransferDebt_Draw(t *testing.T) {
	m := vat.NewMemory()

	if err := m.TransferDebt(ilk, holder, wad(50), buffer, wad(50)); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if got := m.Urn(ilk, holder).NormalizedDebt; got.Cmp(wad(50)) != 0 {
		t.Errorf("art: got %s, want %s", got, wad(50))
	}
	if got := m.TokenBalance(buffer); got.Cmp(wad(50)) != 0 {
		t.Errorf("buffer: got %s, want %s", got, wad(50))
	}
}

func TestTransferDebt_WipeRequiresAllowance(t *testing.T) {
	m := vat.NewMemory()
	m.TransferDebt(ilk, holder, wad(50), buffer, wad(50))

	err := m.TransferDebt(ilk, holder, new(big.Int).Neg(wad(20)), buffer, new(big.Int).Neg(wad(20)))
	if err == nil {
		t.Fatal("wipe without allowance should fail")
	}

	m.Approve(buffer, holder, wad(20))
	if err := m.TransferDebt(ilk, holder, new(big.Int).Neg(wad(20)), buffer, new(big.Int).Neg(wad(20))); err != nil {
		t.Fatalf("wipe: %v", err)
	}

	if got := m.Urn(ilk, holder).NormalizedDebt; got.Cmp(wad(30)) != 0 {
		t.Errorf("art: got %s, want %s", got, wad(30))
	}
	if got := m.TokenBalance(buffer); got.Cmp(wad(30)) != 0 {
		t.Errorf("buffer: got %s, want %s", got, wad(30))
	}
	// Allowance is consumed by the burn
	if got := m.Allowance(buffer, holder); got.Sign() != 0 {
		t.Errorf("allowance: got %s, want 0", got)
	}
}

func TestTransferDebt_WipeUnderflowsDebt(t *testing.T) {
	m := vat.NewMemory()
	m.TransferDebt(ilk, holder, wad(10), buffer, wad(10))
	m.Credit(buffer, wad(100))
	m.Approve(buffer, holder, wad(100))

	before := m.Snapshot()
	err := m.TransferDebt(ilk, holder, new(big.Int).Neg(wad(11)), buffer, new(big.Int).Neg(wad(11)))
	if err == nil {
		t.Fatal("repaying more than art should fail")
	}
	if !reflect.DeepEqual(before, m.Snapshot()) {
		t.Error("failed wipe must leave the ledger untouched")
	}
}

func TestTransferDebt_WipeInsufficientTokens(t *testing.T) {
	m := vat.NewMemory()
	m.TransferDebt(ilk, holder, wad(50), buffer, wad(50))
	m.Approve(buffer, holder, wad(100))

	before := m.Snapshot()
	err := m.TransferDebt(ilk, holder, new(big.Int).Neg(wad(51)), buffer, new(big.Int).Neg(wad(51)))
	if err == nil {
		t.Fatal("burning more than the balance should fail")
	}
	if !reflect.DeepEqual(before, m.Snapshot()) {
		t.Error("failed wipe must leave the ledger untouched")
	}
}

func TestTransferDebt_OpposingSignsRejected(t *testing.T) {
	m := vat.NewMemory()
	err := m.TransferDebt(ilk, holder, wad(1), buffer, new(big.Int).Neg(wad(1)))
	if err == nil {
		t.Error("opposing debt/token signs should be rejected")
	}
}

func TestTransferDebt_ZeroDeltaBurn(t *testing.T) {
	// A repayment so small its normalized delta floors to zero still burns
	// tokens and must take the wipe path, not mint.
	m := vat.NewMemory()
	m.TransferDebt(ilk, holder, wad(10), buffer, wad(10))
	m.Approve(buffer, holder, wad(10))

	if err := m.TransferDebt(ilk, holder, new(big.Int), buffer, new(big.Int).Neg(wad(1))); err != nil {
		t.Fatalf("zero-delta burn: %v", err)
	}
	if got := m.TokenBalance(buffer); got.Cmp(wad(9)) != 0 {
		t.Errorf("buffer: got %s, want %s", got, wad(9))
	}
	if got := m.Urn(ilk, holder).NormalizedDebt; got.Cmp(wad(10)) != 0 {
		t.Errorf("art must be unchanged: got %s", got)
	}
}

// ============================================================================
// Test: rate accumulator
// ============================================================================

func TestRate_StartsAtOneRay(t *testing.T) {
	m := vat.NewMemory()
	if got := m.Rate(ilk); got.Cmp(fixedpoint.Ray) != 0 {
		t.Errorf("got %s, want 1.0 ray", got)
	}
}

func TestFold_AdvancesRateAndCreditsFee(t *testing.T) {
	m := vat.NewMemory()
	m.TransferDebt(ilk, holder, wad(50), buffer, wad(50))

	delta, _ := new(big.Int).SetString("1000000000000000000000000", 10) // 0.001 ray
	if err := m.Fold(ilk, vow, delta); err != nil {
		t.Fatalf("fold: %v", err)
	}

	wantRate, _ := new(big.Int).SetString("1001000000000000000000000000", 10)
	if got := m.Rate(ilk); got.Cmp(wantRate) != 0 {
		t.Errorf("rate: got %s, want %s", got, wantRate)
	}

	// Fee: 50 wad * 0.001 ray / ray = 0.05 wad
	wantFee, _ := new(big.Int).SetString("50000000000000000", 10)
	if got := m.TokenBalance(vow); got.Cmp(wantFee) != 0 {
		t.Errorf("fee: got %s, want %s", got, wantFee)
	}
}

func TestFold_RejectsNegativeDelta(t *testing.T) {
	m := vat.NewMemory()
	if err := m.Fold(ilk, vow, big.NewInt(-1)); err == nil {
		t.Error("rate accumulator must be monotonically non-decreasing")
	}
}

func TestFold_NoDebtNoFee(t *testing.T) {
	m := vat.NewMemory()
	if err := m.Fold(ilk, vow, big.NewInt(1)); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if got := m.TokenBalance(vow); got.Sign() != 0 {
		t.Errorf("no outstanding debt, fee should be zero: got %s", got)
	}
}

// ============================================================================
// Test: snapshot
// ============================================================================

func TestSnapshot_CapturesAll(t *testing.T) {
	m := vat.NewMemory()
	m.Slip(ilk, holder, wad(5))
	m.Credit(buffer, wad(7))
	m.Approve(buffer, holder, wad(3))

	snap := m.Snapshot()
	if snap["urn:ETH-A:vault/engine:free"] != wad(5).String() {
		t.Errorf("free: got %s", snap["urn:ETH-A:vault/engine:free"])
	}
	if snap["token:vault/buffer"] != wad(7).String() {
		t.Errorf("token: got %s", snap["token:vault/buffer"])
	}
	if snap["allowance:vault/buffer:vault/engine"] != wad(3).String() {
		t.Errorf("allowance: got %s", snap["allowance:vault/buffer:vault/engine"])
	}
}
