package escrow

import (
	"math/big"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/pkg/errors"
)

// Distribute converts the escrow's held balance into per-recipient payout
// credits, then locks the escrow. All-or-nothing: every recipient is
// validated before the first credit is written, and the settlement lock is
// the last thing set. A second call always fails with AlreadySettled.
//
// force is the arbitration path: the caller (the competition host) has
// already authorized settling an under-funded escrow with whatever was
// actually deposited. Without it, the escrow must be fully funded.
func (e *Escrow) Distribute(explicit *model.Distribution, height uint64, force bool) (*model.SettlementEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusSettled {
		return nil, errors.Wrapf(model.ErrAlreadySettled, "escrow %s settled at height %d", e.id, e.settledAt)
	}
	if !force && !e.fullyFundedLocked() {
		return nil, errors.Wrapf(model.ErrNotFunded, "escrow %s has unfunded dues", e.id)
	}

	dist, err := ResolveSettlementDistribution(explicit, e.dueOrder)
	if err != nil {
		return nil, err
	}
	for _, mp := range dist.MemberPercentages {
		if err := ValidateAddr(mp.Addr); err != nil {
			return nil, err
		}
	}
	if err := ValidateAddr(dist.RemainderAddr); err != nil {
		return nil, err
	}

	payouts := computePayouts(e.total, dist)

	// Stage every credit before touching escrow state so a bad leg aborts
	// with nothing committed and no lock applied.
	staged := map[model.Address]*model.Balance{}
	for addr, bal := range payouts {
		if bal.IsEmpty() {
			continue
		}
		cur := staged[addr]
		if cur == nil {
			cur = &model.Balance{}
			staged[addr] = cur
		}
		if err := cur.Add(bal); err != nil {
			return nil, errors.Wrap(model.ErrTransferFailed, err.Error())
		}
	}

	// Point of no return. Credits land and the terminal lock is set under
	// the same critical section that checked it.
	e.credits = staged
	e.status = StatusSettled
	e.settledAt = height
	settlementCounter.Inc()

	ev := &model.SettlementEvent{
		EscrowID:  e.id,
		Height:    height,
		Payouts:   map[model.Address]model.Balance{},
		Remainder: dist.RemainderAddr,
		Forced:    force,
	}
	for addr, bal := range payouts {
		if !bal.IsEmpty() {
			ev.Payouts[addr] = bal.Clone()
		}
	}
	return ev, nil
}

// computePayouts floors each member's share per denomination component and
// sends everything left -- rounding dust, unallocated percentage, and the
// whole non-fungible pool -- to the remainder address. Percentages apply to
// fungible and native components only; NFTs are indivisible and go to the
// remainder recipient in full.
func computePayouts(total model.Balance, dist model.Distribution) map[model.Address]model.Balance {
	payouts := map[model.Address]model.Balance{}
	remaining := total.Clone()

	for _, mp := range dist.MemberPercentages {
		leg := model.Balance{}
		for _, entry := range total.Native {
			if amt := floorShare(entry.Amount, mp.Percentage); amt.Sign() > 0 {
				leg.Native = append(leg.Native, model.NativeEntry{Denom: entry.Denom, Amount: amt})
			}
		}
		for _, entry := range total.Fungible {
			if amt := floorShare(entry.Amount, mp.Percentage); amt.Sign() > 0 {
				leg.Fungible = append(leg.Fungible, model.FungibleEntry{Contract: entry.Contract, Amount: amt})
			}
		}
		if leg.IsEmpty() {
			continue
		}
		// the pool covers every floored leg, so Sub cannot fail here
		_ = remaining.Sub(leg)
		merged := payouts[mp.Addr]
		_ = merged.Add(leg)
		payouts[mp.Addr] = merged
	}

	if !remaining.IsEmpty() {
		merged := payouts[dist.RemainderAddr]
		_ = merged.Add(remaining)
		payouts[dist.RemainderAddr] = merged
	}
	return payouts
}

// floorShare computes floor(amount * share).
func floorShare(amount *big.Int, share *big.Rat) *big.Int {
	out := new(big.Int).Mul(amount, share.Num())
	return out.Quo(out, share.Denom())
}

// Withdraw pays out a recipient's settled credit and zeroes it, so a second
// call cannot double-pay. Only valid once the escrow is settled.
func (e *Escrow) Withdraw(requester model.Address) (model.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusSettled {
		return model.Balance{}, errors.Wrapf(model.ErrNothingToWithdraw, "escrow %s is not settled", e.id)
	}
	credit, ok := e.credits[requester]
	if !ok || credit.IsEmpty() {
		return model.Balance{}, errors.Wrapf(model.ErrNothingToWithdraw, "no credit for %s", requester)
	}
	paid := credit.Clone()
	// total tracks deposits minus completed withdrawals
	if err := e.total.Sub(paid); err != nil {
		return model.Balance{}, errors.Wrap(model.ErrTransferFailed, err.Error())
	}
	delete(e.credits, requester)
	withdrawalCounter.Inc()
	return paid, nil
}

// Credit returns the balance still owed to a recipient post-settlement.
func (e *Escrow) Credit(addr model.Address) model.Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.credits[addr]; ok {
		return c.Clone()
	}
	return model.Balance{}
}

// Credits snapshots all outstanding payout credits.
func (e *Escrow) Credits() map[model.Address]model.Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := map[model.Address]model.Balance{}
	for addr, c := range e.credits {
		if !c.IsEmpty() {
			out[addr] = c.Clone()
		}
	}
	return out
}
