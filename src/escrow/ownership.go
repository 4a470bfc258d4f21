package escrow

import (
	"github.com/arenalabs/escrowd/src/model"
	"github.com/pkg/errors"
)

// Ownership gates the administrative lock. Transfers are two-step: the
// current owner proposes, the new owner accepts.
type Ownership struct {
	owner   model.Address
	pending model.Address
}

func (o *Ownership) Owner() model.Address { return o.owner }

func (o *Ownership) assertOwner(caller model.Address) error {
	if o.owner == "" || caller != o.owner {
		return errors.Wrapf(model.ErrUnauthorized, "caller %s is not the owner", caller)
	}
	return nil
}

// TransferOwnership proposes a new owner. The proposal stands until
// accepted or overwritten by a newer proposal.
func (e *Escrow) TransferOwnership(caller, newOwner model.Address) error {
	if err := ValidateAddr(newOwner); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ownership.assertOwner(caller); err != nil {
		return err
	}
	e.ownership.pending = newOwner
	return nil
}

func (e *Escrow) AcceptOwnership(caller model.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ownership.pending == "" || caller != e.ownership.pending {
		return errors.Wrapf(model.ErrUnauthorized, "caller %s has no pending ownership", caller)
	}
	e.ownership.owner = caller
	e.ownership.pending = ""
	return nil
}

// RenounceOwnership drops the owner entirely; the admin lock becomes
// unusable afterwards.
func (e *Escrow) RenounceOwnership(caller model.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ownership.assertOwner(caller); err != nil {
		return err
	}
	e.ownership.owner = ""
	e.ownership.pending = ""
	return nil
}

func (e *Escrow) Owner() model.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ownership.owner
}
