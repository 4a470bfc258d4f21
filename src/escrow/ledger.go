package escrow

import (
	"github.com/arenalabs/escrowd/src/model"
	"github.com/pkg/errors"
)

// RecordDeposit credits a party's cumulative contribution and the escrow
// total. No-op deposits (zero amounts, empty NFT sets) are rejected rather
// than ignored; depositing more than the due requires is fine, the excess
// stays in the pool.
func (e *Escrow) RecordDeposit(party model.Address, delta model.Balance) error {
	if err := delta.Validate(); err != nil {
		return err
	}
	if delta.IsEmpty() {
		return errors.Wrap(model.ErrInvalidDeposit, "empty deposit")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusOpen {
		return errors.Wrapf(model.ErrEscrowLocked, "escrow %s is %s", e.id, e.status)
	}
	// NFT duplicates fail against the party holdings and against the pool.
	// Both adds are staged on copies so a rejected deposit changes nothing.
	cur := model.Balance{}
	if prev, ok := e.deposits[party]; ok {
		cur = prev.Clone()
	}
	if err := cur.Add(delta); err != nil {
		return err
	}
	total := e.total.Clone()
	if err := total.Add(delta); err != nil {
		return err
	}
	e.deposits[party] = &cur
	e.total = total
	if due, ok := e.dues[party]; ok && !e.funded[party] {
		e.funded[party] = cur.Covers(due.Balance)
	}
	depositCounter.Inc()
	return nil
}

// Due returns the configured requirement for a party.
func (e *Escrow) Due(party model.Address) (model.Due, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	due, ok := e.dues[party]
	if !ok {
		return model.Due{}, errors.Wrapf(model.ErrNotFound, "no due for %s", party)
	}
	return model.Due{Party: due.Party, Balance: due.Balance.Clone()}, nil
}

// Dues returns all configured dues in instantiation order.
func (e *Escrow) Dues() []model.Due {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Due, 0, len(e.dueOrder))
	for _, p := range e.dueOrder {
		d := e.dues[p]
		out = append(out, model.Due{Party: d.Party, Balance: d.Balance.Clone()})
	}
	return out
}

// IsFunded reports whether the party's cumulative deposits cover its due.
// Once true it stays true; there is no withdrawal before settlement.
func (e *Escrow) IsFunded(party model.Address) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.dues[party]; !ok {
		return false, errors.Wrapf(model.ErrNotFound, "no due for %s", party)
	}
	return e.funded[party], nil
}

// IsFullyFunded is the gate on normal-path settlement.
func (e *Escrow) IsFullyFunded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullyFundedLocked()
}

func (e *Escrow) fullyFundedLocked() bool {
	for _, p := range e.dueOrder {
		if !e.funded[p] {
			return false
		}
	}
	return true
}

// DepositedBalance returns what a party has contributed so far.
func (e *Escrow) DepositedBalance(party model.Address) model.Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.deposits[party]; ok {
		return cur.Clone()
	}
	return model.Balance{}
}

// Depositors lists every address that has contributed, due party or not.
func (e *Escrow) Depositors() []model.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Address, 0, len(e.deposits))
	for addr := range e.deposits {
		out = append(out, addr)
	}
	return out
}
