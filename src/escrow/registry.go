package escrow

import (
	"sync"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/pkg/errors"
)

// Registry holds the live escrows, one per competition, plus the shared
// preset log. Escrows hold no cross-escrow mutable state, so callers may
// work different escrows concurrently.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Escrow
	byComp  map[string]*Escrow
	presets *PresetStore
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    map[string]*Escrow{},
		byComp:  map[string]*Escrow{},
		presets: NewPresetStore(),
	}
}

func (r *Registry) Presets() *PresetStore { return r.presets }

// Create instantiates an escrow for a competition. One escrow per
// competition; a second create for the same competition is refused.
func (r *Registry) Create(competition string, owner model.Address, dues []model.Due) (*Escrow, error) {
	e, err := New(competition, owner, dues)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byComp[competition]; ok {
		return nil, errors.Wrapf(model.ErrDuplicateRecipient, "competition %s already has an escrow", competition)
	}
	r.byID[e.id] = e
	r.byComp[competition] = e
	return e, nil
}

// Restore re-registers an escrow under its existing id when rebuilding
// from the durable store.
func (r *Registry) Restore(id, competition string, owner model.Address, dues []model.Due) (*Escrow, error) {
	e, err := New(competition, owner, dues)
	if err != nil {
		return nil, err
	}
	e.id = id
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byComp[competition]; ok {
		return nil, errors.Wrapf(model.ErrDuplicateRecipient, "competition %s already has an escrow", competition)
	}
	r.byID[e.id] = e
	r.byComp[competition] = e
	return e, nil
}

func (r *Registry) Get(id string) (*Escrow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byID[id]; ok {
		return e, nil
	}
	if e, ok := r.byComp[id]; ok {
		return e, nil
	}
	return nil, errors.Wrapf(model.ErrNotFound, "no escrow %s", id)
}

func (r *Registry) List() []*Escrow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Escrow, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out
}

// StateDump is the consolidated snapshot served to front-ends and
// indexers. AddrDistribution is populated only when a specific address was
// asked for.
type StateDump struct {
	EscrowID         string                          `json:"escrow_id"`
	Competition      string                          `json:"competition"`
	Status           Status                          `json:"status"`
	IsLocked         bool                            `json:"is_locked"`
	TotalBalance     model.Balance                   `json:"total_balance"`
	Dues             []model.Due                     `json:"dues"`
	Funded           map[model.Address]bool          `json:"funded"`
	Credits          map[model.Address]model.Balance `json:"credits"`
	AddrBalance      *model.Balance                  `json:"addr_balance,omitempty"`
	AddrDistribution *model.Distribution             `json:"addr_distribution,omitempty"`
}

// DumpState snapshots one escrow; with addr set it also resolves that
// address's deposited balance and effective preset distribution.
func (r *Registry) DumpState(id string, addr *model.Address) (*StateDump, error) {
	e, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	dump := &StateDump{
		EscrowID:     e.id,
		Competition:  e.competition,
		Status:       e.status,
		IsLocked:     e.status == StatusSettled,
		TotalBalance: e.total.Clone(),
		Funded:       map[model.Address]bool{},
		Credits:      map[model.Address]model.Balance{},
	}
	for _, p := range e.dueOrder {
		d := e.dues[p]
		dump.Dues = append(dump.Dues, model.Due{Party: d.Party, Balance: d.Balance.Clone()})
		dump.Funded[p] = e.funded[p]
	}
	for a, c := range e.credits {
		if !c.IsEmpty() {
			dump.Credits[a] = c.Clone()
		}
	}
	if addr != nil {
		if dep, ok := e.deposits[*addr]; ok {
			b := dep.Clone()
			dump.AddrBalance = &b
		}
	}
	e.mu.Unlock()
	if addr != nil {
		dump.AddrDistribution = r.presets.At(*addr, nil)
	}
	return dump, nil
}
