package model

import (
	"math/big"

	"github.com/pkg/errors"
)

// SumTolerance is the slack allowed when an explicit distribution must sum
// to exactly 1. Shares are exact rationals internally, but callers supply
// truncated decimal strings (e.g. three 0.333333333 thirds), so the strict
// check accepts |sum - 1| <= 1e-9.
var SumTolerance = big.NewRat(1, 1_000_000_000)

var one = big.NewRat(1, 1)

// MemberPercentage allocates a share of the settlement pool to one address.
type MemberPercentage struct {
	Addr       Address  `json:"addr"`
	Percentage *big.Rat `json:"percentage"`
}

// Distribution is a percentage-keyed payout plan. Any share not allocated
// to a member flows to RemainderAddr at settlement.
type Distribution struct {
	MemberPercentages []MemberPercentage `json:"member_percentages"`
	RemainderAddr     Address            `json:"remainder_addr"`
}

// ParsePercentage parses a decimal share like "0.25".
func ParsePercentage(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidPercentage, "unparseable percentage %q", s)
	}
	return r, nil
}

// ParseMustPercentage is ParsePercentage for literals; panics on bad input.
func ParseMustPercentage(s string) *big.Rat {
	r, err := ParsePercentage(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (d *Distribution) Clone() Distribution {
	out := Distribution{RemainderAddr: d.RemainderAddr}
	for _, mp := range d.MemberPercentages {
		out.MemberPercentages = append(out.MemberPercentages, MemberPercentage{
			Addr:       mp.Addr,
			Percentage: new(big.Rat).Set(mp.Percentage),
		})
	}
	return out
}

func (d *Distribution) Sum() *big.Rat {
	sum := new(big.Rat)
	for _, mp := range d.MemberPercentages {
		sum.Add(sum, mp.Percentage)
	}
	return sum
}

func (d *Distribution) validateShares() error {
	if d.RemainderAddr == "" {
		return errors.Wrap(ErrInvalidPercentage, "missing remainder address")
	}
	seen := map[Address]bool{}
	for _, mp := range d.MemberPercentages {
		if mp.Addr == "" {
			return errors.Wrap(ErrInvalidPercentage, "empty recipient address")
		}
		if seen[mp.Addr] {
			return errors.Wrapf(ErrDuplicateRecipient, "recipient %s listed twice", mp.Addr)
		}
		seen[mp.Addr] = true
		if mp.Percentage == nil || mp.Percentage.Sign() <= 0 || mp.Percentage.Cmp(one) > 0 {
			return errors.Wrapf(ErrInvalidPercentage, "share for %s must be in (0, 1]", mp.Addr)
		}
	}
	return nil
}

// ValidatePreset allows the sum to fall short of 1; the shortfall accrues
// to the remainder address when the preset is applied.
func (d *Distribution) ValidatePreset() error {
	if err := d.validateShares(); err != nil {
		return err
	}
	if d.Sum().Cmp(one) > 0 {
		return errors.Wrap(ErrInvalidPercentage, "preset shares exceed 1")
	}
	return nil
}

// ValidateStrict requires the shares to cover the whole pool. Used for the
// explicit distribution supplied at settlement time.
func (d *Distribution) ValidateStrict() error {
	if err := d.validateShares(); err != nil {
		return err
	}
	diff := new(big.Rat).Sub(d.Sum(), one)
	if diff.Abs(diff).Cmp(SumTolerance) > 0 {
		return errors.Wrapf(ErrPercentageSumMismatch, "shares sum to %s", d.Sum().FloatString(9))
	}
	return nil
}
