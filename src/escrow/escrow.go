package escrow

import (
	"sync"
	"unicode"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Status string

const (
	// StatusOpen accepts deposits.
	StatusOpen Status = "open"
	// StatusAdminLocked freezes deposits ahead of settlement. Reversible
	// until settlement happens.
	StatusAdminLocked Status = "admin_locked"
	// StatusSettled is terminal. Every mutating operation fails from here.
	StatusSettled Status = "settled"
)

// Escrow holds one competition's dues, deposits, and settlement state.
// Escrows are fully independent of each other; all shared state lives
// behind the per-escrow mutex, and the settle transition is check-then-set
// under it so a second Distribute can never slip through.
type Escrow struct {
	mu sync.Mutex

	id          string
	competition string
	ownership   Ownership

	dues      map[model.Address]*model.Due
	dueOrder  []model.Address
	deposits  map[model.Address]*model.Balance
	funded    map[model.Address]bool
	total     model.Balance
	status    Status
	settledAt uint64

	credits map[model.Address]*model.Balance
}

// New instantiates an escrow from the competition's configured dues. Dues
// are validated here and never re-created afterwards.
func New(competition string, owner model.Address, dues []model.Due) (*Escrow, error) {
	if err := ValidateAddr(owner); err != nil {
		return nil, err
	}
	e := &Escrow{
		id:          uuid.NewString(),
		competition: competition,
		ownership:   Ownership{owner: owner},
		deposits:    map[model.Address]*model.Balance{},
		funded:      map[model.Address]bool{},
		status:      StatusOpen,
		credits:     map[model.Address]*model.Balance{},
	}
	cloned := make([]model.Due, 0, len(dues))
	seen := map[model.Address]bool{}
	for _, d := range dues {
		if err := ValidateAddr(d.Party); err != nil {
			return nil, err
		}
		if seen[d.Party] {
			return nil, errors.Wrapf(model.ErrDuplicateRecipient, "party %s has two dues", d.Party)
		}
		seen[d.Party] = true
		if err := d.Balance.Validate(); err != nil {
			return nil, err
		}
		cloned = append(cloned, model.Due{Party: d.Party, Balance: d.Balance.Clone()})
		e.dueOrder = append(e.dueOrder, d.Party)
		// a party that owes nothing is satisfied from the start
		e.funded[d.Party] = d.Balance.IsEmpty()
	}
	e.dues = model.DueArrayToMap(cloned)
	return e, nil
}

func (e *Escrow) ID() string          { return e.id }
func (e *Escrow) Competition() string { return e.competition }

func (e *Escrow) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// IsLocked is true once settlement has happened. The reversible admin
// freeze reports false here; it blocks deposits but is not terminal.
func (e *Escrow) IsLocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == StatusSettled
}

func (e *Escrow) TotalBalance() model.Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total.Clone()
}

// SetLock is the owner's administrative freeze, used once a competition
// begins. It never triggers payout. Unlocking is rejected after the
// settlement lock since that one is terminal.
func (e *Escrow) SetLock(caller model.Address, value bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ownership.assertOwner(caller); err != nil {
		return err
	}
	if e.status == StatusSettled {
		return errors.Wrap(model.ErrAlreadySettled, "settlement lock is terminal")
	}
	if value {
		e.status = StatusAdminLocked
	} else {
		e.status = StatusOpen
	}
	return nil
}

// ValidateAddr is the recipient sanity check applied before any transfer
// leg is queued. The host chain has the real bech32 rules; here we reject
// the obviously malformed.
func ValidateAddr(a model.Address) error {
	if a == "" {
		return errors.Wrap(model.ErrTransferFailed, "empty address")
	}
	if len(a) > 128 {
		return errors.Wrapf(model.ErrTransferFailed, "address %q too long", a)
	}
	for _, r := range string(a) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.Wrapf(model.ErrTransferFailed, "address %q contains whitespace", a)
		}
	}
	return nil
}
