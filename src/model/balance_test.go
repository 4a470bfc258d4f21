package model

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

var bigIntCmp = cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })

func native(denom string, amount int64) Balance {
	return Balance{Native: []NativeEntry{{Denom: denom, Amount: big.NewInt(amount)}}}
}

func TestBalanceAdd(t *testing.T) {
	total := Balance{}
	if err := total.Add(native("uusd", 100)); err != nil {
		t.Fatal(err)
	}
	if err := total.Add(native("uusd", 50)); err != nil {
		t.Fatal(err)
	}
	if err := total.Add(native("uatom", 7)); err != nil {
		t.Fatal(err)
	}
	expected := Balance{Native: []NativeEntry{
		{Denom: "uusd", Amount: big.NewInt(150)},
		{Denom: "uatom", Amount: big.NewInt(7)},
	}}
	if d := cmp.Diff(expected, total, bigIntCmp); d != "" {
		t.Fatalf("incorrect sum: %s", d)
	}
}

func TestBalanceAddRejectsDuplicateNFT(t *testing.T) {
	total := Balance{NonFungible: []NonFungibleEntry{{Contract: "nftc", TokenIDs: []string{"1", "2"}}}}
	dup := Balance{NonFungible: []NonFungibleEntry{{Contract: "nftc", TokenIDs: []string{"2"}}}}
	if err := total.Add(dup); !errors.Is(err, ErrInvalidDeposit) {
		t.Fatalf("expected InvalidDeposit for duplicate token id, got %v", err)
	}
}

func TestBalanceSubBoundedAtZero(t *testing.T) {
	total := native("uusd", 100)
	if err := total.Sub(native("uusd", 150)); !errors.Is(err, ErrInvalidDeposit) {
		t.Fatalf("expected error subtracting below zero, got %v", err)
	}
	// the failed sub must not clamp
	if total.Native[0].Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance mutated by failed sub: %s", total.Native[0].Amount)
	}
	if err := total.Sub(native("uusd", 100)); err != nil {
		t.Fatal(err)
	}
	if !total.IsEmpty() {
		t.Fatalf("expected empty balance after exact sub, got %+v", total)
	}
}

func TestBalanceValidate(t *testing.T) {
	zero := Balance{Native: []NativeEntry{{Denom: "uusd", Amount: big.NewInt(0)}}}
	if err := zero.Validate(); !errors.Is(err, ErrInvalidDeposit) {
		t.Fatalf("expected InvalidDeposit for zero amount, got %v", err)
	}
	emptyNFT := Balance{NonFungible: []NonFungibleEntry{{Contract: "nftc"}}}
	if err := emptyNFT.Validate(); !errors.Is(err, ErrInvalidDeposit) {
		t.Fatalf("expected InvalidDeposit for empty token set, got %v", err)
	}
	dup := Balance{Native: []NativeEntry{
		{Denom: "uusd", Amount: big.NewInt(1)},
		{Denom: "uusd", Amount: big.NewInt(2)},
	}}
	if err := dup.Validate(); !errors.Is(err, ErrInvalidDeposit) {
		t.Fatalf("expected InvalidDeposit for duplicate denom, got %v", err)
	}
}

func TestBalanceCovers(t *testing.T) {
	held := Balance{
		Native:      []NativeEntry{{Denom: "uusd", Amount: big.NewInt(120)}},
		NonFungible: []NonFungibleEntry{{Contract: "nftc", TokenIDs: []string{"1", "2", "3"}}},
	}
	required := Balance{
		Native:      []NativeEntry{{Denom: "uusd", Amount: big.NewInt(100)}},
		NonFungible: []NonFungibleEntry{{Contract: "nftc", TokenIDs: []string{"1", "3"}}},
	}
	if !held.Covers(required) {
		t.Fatal("excess holdings should cover the requirement")
	}
	missing := Balance{NonFungible: []NonFungibleEntry{{Contract: "nftc", TokenIDs: []string{"9"}}}}
	if held.Covers(missing) {
		t.Fatal("missing token id should not be covered")
	}
}

func TestBalanceCloneIsDeep(t *testing.T) {
	orig := native("uusd", 100)
	clone := orig.Clone()
	if err := clone.Add(native("uusd", 1)); err != nil {
		t.Fatal(err)
	}
	if orig.Native[0].Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatal("mutating a clone reached the original")
	}
}
