package model

import (
	"math/big"
	"sort"

	"github.com/pkg/errors"
)

type Address string

// NativeEntry is an amount of a native chain token, keyed by denom.
type NativeEntry struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// FungibleEntry is an amount held against a fungible token contract.
type FungibleEntry struct {
	Contract Address  `json:"contract"`
	Amount   *big.Int `json:"amount"`
}

// NonFungibleEntry is a set of token ids held against an NFT contract.
type NonFungibleEntry struct {
	Contract Address  `json:"contract"`
	TokenIDs []string `json:"token_ids"`
}

// Balance maps denomination identifiers to amounts (or token-id sets for
// NFTs). Entries are unique per identifier within their kind. Amounts are
// arbitrary precision and never negative.
type Balance struct {
	Native      []NativeEntry      `json:"native,omitempty"`
	Fungible    []FungibleEntry    `json:"fungible,omitempty"`
	NonFungible []NonFungibleEntry `json:"non_fungible,omitempty"`
}

func (b *Balance) IsEmpty() bool {
	return len(b.Native) == 0 && len(b.Fungible) == 0 && len(b.NonFungible) == 0
}

// Validate rejects zero-amount entries, empty NFT sets, and duplicate
// identifiers. A deposit carrying any such entry is refused outright rather
// than silently normalized.
func (b *Balance) Validate() error {
	seenNative := map[string]bool{}
	for _, e := range b.Native {
		if e.Amount == nil || e.Amount.Sign() <= 0 {
			return errors.Wrapf(ErrInvalidDeposit, "native %s has non-positive amount", e.Denom)
		}
		if seenNative[e.Denom] {
			return errors.Wrapf(ErrInvalidDeposit, "duplicate native denom %s", e.Denom)
		}
		seenNative[e.Denom] = true
	}
	seenFungible := map[Address]bool{}
	for _, e := range b.Fungible {
		if e.Amount == nil || e.Amount.Sign() <= 0 {
			return errors.Wrapf(ErrInvalidDeposit, "fungible %s has non-positive amount", e.Contract)
		}
		if seenFungible[e.Contract] {
			return errors.Wrapf(ErrInvalidDeposit, "duplicate fungible contract %s", e.Contract)
		}
		seenFungible[e.Contract] = true
	}
	seenNFT := map[Address]bool{}
	for _, e := range b.NonFungible {
		if len(e.TokenIDs) == 0 {
			return errors.Wrapf(ErrInvalidDeposit, "nft %s has empty token set", e.Contract)
		}
		if seenNFT[e.Contract] {
			return errors.Wrapf(ErrInvalidDeposit, "duplicate nft contract %s", e.Contract)
		}
		seenNFT[e.Contract] = true
		ids := map[string]bool{}
		for _, id := range e.TokenIDs {
			if ids[id] {
				return errors.Wrapf(ErrInvalidDeposit, "nft %s token %s listed twice", e.Contract, id)
			}
			ids[id] = true
		}
	}
	return nil
}

func (b *Balance) Clone() Balance {
	out := Balance{}
	for _, e := range b.Native {
		out.Native = append(out.Native, NativeEntry{Denom: e.Denom, Amount: new(big.Int).Set(e.Amount)})
	}
	for _, e := range b.Fungible {
		out.Fungible = append(out.Fungible, FungibleEntry{Contract: e.Contract, Amount: new(big.Int).Set(e.Amount)})
	}
	for _, e := range b.NonFungible {
		ids := make([]string, len(e.TokenIDs))
		copy(ids, e.TokenIDs)
		out.NonFungible = append(out.NonFungible, NonFungibleEntry{Contract: e.Contract, TokenIDs: ids})
	}
	return out
}

// Add combines other into b pointwise. Same identifier sums; NFT sets
// union, with duplicate token ids rejected rather than collapsed.
func (b *Balance) Add(other Balance) error {
	for _, e := range other.Native {
		if cur := b.native(e.Denom); cur != nil {
			cur.Amount.Add(cur.Amount, e.Amount)
		} else {
			b.Native = append(b.Native, NativeEntry{Denom: e.Denom, Amount: new(big.Int).Set(e.Amount)})
		}
	}
	for _, e := range other.Fungible {
		if cur := b.fungible(e.Contract); cur != nil {
			cur.Amount.Add(cur.Amount, e.Amount)
		} else {
			b.Fungible = append(b.Fungible, FungibleEntry{Contract: e.Contract, Amount: new(big.Int).Set(e.Amount)})
		}
	}
	for _, e := range other.NonFungible {
		cur := b.nonFungible(e.Contract)
		if cur == nil {
			ids := make([]string, len(e.TokenIDs))
			copy(ids, e.TokenIDs)
			b.NonFungible = append(b.NonFungible, NonFungibleEntry{Contract: e.Contract, TokenIDs: ids})
			continue
		}
		for _, id := range e.TokenIDs {
			if containsID(cur.TokenIDs, id) {
				return errors.Wrapf(ErrInvalidDeposit, "nft %s token %s already held", e.Contract, id)
			}
			cur.TokenIDs = append(cur.TokenIDs, id)
		}
	}
	return nil
}

// Sub removes other from b pointwise. Going below zero is an error, not a
// clamp; removing an NFT id that isn't held is likewise an error.
func (b *Balance) Sub(other Balance) error {
	for _, e := range other.Native {
		cur := b.native(e.Denom)
		if cur == nil || cur.Amount.Cmp(e.Amount) < 0 {
			return errors.Wrapf(ErrInvalidDeposit, "insufficient native %s", e.Denom)
		}
		cur.Amount.Sub(cur.Amount, e.Amount)
	}
	for _, e := range other.Fungible {
		cur := b.fungible(e.Contract)
		if cur == nil || cur.Amount.Cmp(e.Amount) < 0 {
			return errors.Wrapf(ErrInvalidDeposit, "insufficient fungible %s", e.Contract)
		}
		cur.Amount.Sub(cur.Amount, e.Amount)
	}
	for _, e := range other.NonFungible {
		cur := b.nonFungible(e.Contract)
		if cur == nil {
			return errors.Wrapf(ErrInvalidDeposit, "no nft holdings for %s", e.Contract)
		}
		for _, id := range e.TokenIDs {
			idx := indexOfID(cur.TokenIDs, id)
			if idx < 0 {
				return errors.Wrapf(ErrInvalidDeposit, "nft %s token %s not held", e.Contract, id)
			}
			cur.TokenIDs = append(cur.TokenIDs[:idx], cur.TokenIDs[idx+1:]...)
		}
	}
	b.prune()
	return nil
}

// Covers reports whether b is at least required on every component.
// NFT requirements are a subset check; extra deposited tokens are fine.
func (b *Balance) Covers(required Balance) bool {
	for _, e := range required.Native {
		cur := b.native(e.Denom)
		if cur == nil || cur.Amount.Cmp(e.Amount) < 0 {
			return false
		}
	}
	for _, e := range required.Fungible {
		cur := b.fungible(e.Contract)
		if cur == nil || cur.Amount.Cmp(e.Amount) < 0 {
			return false
		}
	}
	for _, e := range required.NonFungible {
		cur := b.nonFungible(e.Contract)
		if cur == nil {
			return false
		}
		for _, id := range e.TokenIDs {
			if !containsID(cur.TokenIDs, id) {
				return false
			}
		}
	}
	return true
}

// Normalize sorts entries by identifier so balances compare stably.
func (b *Balance) Normalize() {
	sort.Slice(b.Native, func(i, j int) bool { return b.Native[i].Denom < b.Native[j].Denom })
	sort.Slice(b.Fungible, func(i, j int) bool { return b.Fungible[i].Contract < b.Fungible[j].Contract })
	sort.Slice(b.NonFungible, func(i, j int) bool { return b.NonFungible[i].Contract < b.NonFungible[j].Contract })
	for i := range b.NonFungible {
		sort.Strings(b.NonFungible[i].TokenIDs)
	}
}

func (b *Balance) prune() {
	native := b.Native[:0]
	for _, e := range b.Native {
		if e.Amount.Sign() > 0 {
			native = append(native, e)
		}
	}
	b.Native = native
	fungible := b.Fungible[:0]
	for _, e := range b.Fungible {
		if e.Amount.Sign() > 0 {
			fungible = append(fungible, e)
		}
	}
	b.Fungible = fungible
	nft := b.NonFungible[:0]
	for _, e := range b.NonFungible {
		if len(e.TokenIDs) > 0 {
			nft = append(nft, e)
		}
	}
	b.NonFungible = nft
	if len(b.Native) == 0 {
		b.Native = nil
	}
	if len(b.Fungible) == 0 {
		b.Fungible = nil
	}
	if len(b.NonFungible) == 0 {
		b.NonFungible = nil
	}
}

func (b *Balance) native(denom string) *NativeEntry {
	for i := range b.Native {
		if b.Native[i].Denom == denom {
			return &b.Native[i]
		}
	}
	return nil
}

func (b *Balance) fungible(contract Address) *FungibleEntry {
	for i := range b.Fungible {
		if b.Fungible[i].Contract == contract {
			return &b.Fungible[i]
		}
	}
	return nil
}

func (b *Balance) nonFungible(contract Address) *NonFungibleEntry {
	for i := range b.NonFungible {
		if b.NonFungible[i].Contract == contract {
			return &b.NonFungible[i]
		}
	}
	return nil
}

func containsID(ids []string, id string) bool {
	return indexOfID(ids, id) >= 0
}

func indexOfID(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
