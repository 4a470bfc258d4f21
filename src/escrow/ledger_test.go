package escrow

import (
	"math/big"
	"testing"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

var bigIntCmp = cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })

func uusd(amount int64) model.Balance {
	return model.Balance{Native: []model.NativeEntry{{Denom: "uusd", Amount: big.NewInt(amount)}}}
}

func twoPartyEscrow(t *testing.T) *Escrow {
	t.Helper()
	e, err := New("comp-1", "owner", []model.Due{
		{Party: "alice", Balance: uusd(100)},
		{Party: "bob", Balance: uusd(100)},
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestFundingProgression(t *testing.T) {
	e := twoPartyEscrow(t)

	if err := e.RecordDeposit("alice", uusd(100)); err != nil {
		t.Fatal(err)
	}
	if funded, _ := e.IsFunded("alice"); !funded {
		t.Fatal("alice deposited her full due, expected funded")
	}
	if funded, _ := e.IsFunded("bob"); funded {
		t.Fatal("bob has not deposited, expected unfunded")
	}
	if e.IsFullyFunded() {
		t.Fatal("escrow cannot be fully funded with bob outstanding")
	}

	if err := e.RecordDeposit("bob", uusd(100)); err != nil {
		t.Fatal(err)
	}
	if !e.IsFullyFunded() {
		t.Fatal("both dues met, expected fully funded")
	}
	if d := cmp.Diff(uusd(200), e.TotalBalance(), bigIntCmp); d != "" {
		t.Fatalf("incorrect total balance: %s", d)
	}
}

func TestPartialDepositsAccumulate(t *testing.T) {
	e := twoPartyEscrow(t)
	if err := e.RecordDeposit("alice", uusd(60)); err != nil {
		t.Fatal(err)
	}
	if funded, _ := e.IsFunded("alice"); funded {
		t.Fatal("60 of 100 should not be funded")
	}
	if err := e.RecordDeposit("alice", uusd(40)); err != nil {
		t.Fatal(err)
	}
	if funded, _ := e.IsFunded("alice"); !funded {
		t.Fatal("cumulative 100 of 100 should be funded")
	}
}

func TestExcessDepositRetained(t *testing.T) {
	e := twoPartyEscrow(t)
	if err := e.RecordDeposit("alice", uusd(250)); err != nil {
		t.Fatal(err)
	}
	// excess stays in the pool, it is not refunded
	if d := cmp.Diff(uusd(250), e.TotalBalance(), bigIntCmp); d != "" {
		t.Fatalf("incorrect total balance: %s", d)
	}
	if funded, _ := e.IsFunded("alice"); !funded {
		t.Fatal("overfunded due should report funded")
	}
}

func TestZeroDepositRejected(t *testing.T) {
	e := twoPartyEscrow(t)
	if err := e.RecordDeposit("alice", model.Balance{}); !errors.Is(err, model.ErrInvalidDeposit) {
		t.Fatalf("expected InvalidDeposit for empty deposit, got %v", err)
	}
	zero := model.Balance{Native: []model.NativeEntry{{Denom: "uusd", Amount: big.NewInt(0)}}}
	if err := e.RecordDeposit("alice", zero); !errors.Is(err, model.ErrInvalidDeposit) {
		t.Fatalf("expected InvalidDeposit for zero amount, got %v", err)
	}
}

func TestDepositAfterLockRejected(t *testing.T) {
	e := twoPartyEscrow(t)
	if err := e.SetLock("owner", true); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordDeposit("alice", uusd(10)); !errors.Is(err, model.ErrEscrowLocked) {
		t.Fatalf("expected EscrowLocked, got %v", err)
	}
	// the admin freeze is reversible before settlement
	if err := e.SetLock("owner", false); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordDeposit("alice", uusd(10)); err != nil {
		t.Fatal(err)
	}
}

func TestEmptyDueCountsAsFunded(t *testing.T) {
	e, err := New("comp-empty-due", "owner", []model.Due{
		{Party: "ghost", Balance: model.Balance{}},
		{Party: "alice", Balance: uusd(100)},
	})
	if err != nil {
		t.Fatal(err)
	}
	// a party that owes nothing is satisfied without ever depositing
	if funded, _ := e.IsFunded("ghost"); !funded {
		t.Fatal("empty due should report funded from instantiation")
	}
	if e.IsFullyFunded() {
		t.Fatal("alice is still outstanding")
	}
	if err := e.RecordDeposit("alice", uusd(100)); err != nil {
		t.Fatal(err)
	}
	if !e.IsFullyFunded() {
		t.Fatal("alice funded and ghost owes nothing, expected fully funded")
	}
}

func TestDueNotFound(t *testing.T) {
	e := twoPartyEscrow(t)
	if _, err := e.Due("mallory"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := e.IsFunded("mallory"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestNonPartyDepositsJoinThePool(t *testing.T) {
	e := twoPartyEscrow(t)
	if err := e.RecordDeposit("sponsor", uusd(500)); err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(uusd(500), e.TotalBalance(), bigIntCmp); d != "" {
		t.Fatalf("incorrect total balance: %s", d)
	}
	if e.IsFullyFunded() {
		t.Fatal("sponsor money does not fund the parties' dues")
	}
}

func TestNFTDueFunding(t *testing.T) {
	due := model.Balance{NonFungible: []model.NonFungibleEntry{{Contract: "nftc", TokenIDs: []string{"7"}}}}
	e, err := New("comp-nft", "owner", []model.Due{{Party: "alice", Balance: due}})
	if err != nil {
		t.Fatal(err)
	}
	deposit := model.Balance{NonFungible: []model.NonFungibleEntry{{Contract: "nftc", TokenIDs: []string{"7", "8"}}}}
	if err := e.RecordDeposit("alice", deposit); err != nil {
		t.Fatal(err)
	}
	// deposited ids may exceed the requirement
	if funded, _ := e.IsFunded("alice"); !funded {
		t.Fatal("required token deposited, expected funded")
	}
}
