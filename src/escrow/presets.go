package escrow

import (
	"sort"
	"sync"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/pkg/errors"
)

// snapshot is one entry in an owner's preset log. A nil distribution marks
// the preset cleared as of that height; earlier snapshots stay queryable.
type snapshot struct {
	height uint64
	dist   *model.Distribution
}

// PresetStore is the append-only, height-ordered log of preset
// distributions, one log per setting recipient. A preset covers the
// recipient's own future incoming remainder share; it never changes how a
// settlement caller splits the pool. Snapshots are superseded, never
// mutated in place (two writes at the same height being the one exception,
// since the host delivers at most one effective state per height).
type PresetStore struct {
	mu      sync.RWMutex
	byOwner map[model.Address][]snapshot
}

func NewPresetStore() *PresetStore {
	return &PresetStore{byOwner: map[model.Address][]snapshot{}}
}

// Set writes a new snapshot effective at height. Preset sums may fall
// short of 1 (the shortfall accrues to the remainder address); an empty
// member list clears the preset.
func (s *PresetStore) Set(owner model.Address, dist model.Distribution, height uint64) error {
	if len(dist.MemberPercentages) == 0 {
		return s.Remove(owner, height)
	}
	if err := ValidateAddr(owner); err != nil {
		return err
	}
	if err := dist.ValidatePreset(); err != nil {
		return err
	}
	d := dist.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(owner, snapshot{height: height, dist: &d})
}

// Remove clears the preset as of height. Equivalent to setting with an
// empty member list.
func (s *PresetStore) Remove(owner model.Address, height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.byOwner[owner]
	if len(log) == 0 || log[len(log)-1].dist == nil {
		return errors.Wrapf(model.ErrNotFound, "no preset for %s", owner)
	}
	return s.append(owner, snapshot{height: height, dist: nil})
}

// append keeps the log sorted, which At's binary search depends on. The
// host delivers heights in order; anything below the tail is refused.
func (s *PresetStore) append(owner model.Address, sn snapshot) error {
	log := s.byOwner[owner]
	if n := len(log); n > 0 && log[n-1].height > sn.height {
		return errors.Wrapf(model.ErrStaleHeight,
			"snapshot at %d behind log tail %d for %s", sn.height, log[n-1].height, owner)
	}
	if n := len(log); n > 0 && log[n-1].height == sn.height {
		log[n-1] = sn
	} else {
		log = append(log, sn)
	}
	s.byOwner[owner] = log
	return nil
}

// At returns the snapshot effective at height: the newest entry whose
// height is <= the query height. A nil height means latest. Returns nil if
// no preset existed (or it was cleared) at that point.
func (s *PresetStore) At(owner model.Address, height *uint64) *model.Distribution {
	dist, _, _ := s.Effective(owner, height)
	return dist
}

// Effective resolves like At but also reports the governing snapshot's own
// height. The bool is false when no entry governs at all; a cleared preset
// reports true with a nil distribution.
func (s *PresetStore) Effective(owner model.Address, height *uint64) (*model.Distribution, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.byOwner[owner]
	if len(log) == 0 {
		return nil, 0, false
	}
	idx := len(log) - 1
	if height != nil {
		// first entry above the query height; the one before it governs
		i := sort.Search(len(log), func(i int) bool { return log[i].height > *height })
		if i == 0 {
			return nil, 0, false
		}
		idx = i - 1
	}
	sn := log[idx]
	if sn.dist == nil {
		return nil, sn.height, true
	}
	d := sn.dist.Clone()
	return &d, sn.height, true
}

// ResolveSettlementDistribution picks the plan a settlement call will use.
// An explicit distribution is validated with the strict sum rule and taken
// as-is; presets are bypassed entirely here. With no explicit distribution
// and exactly one eligible payee, that payee takes the whole pool.
func ResolveSettlementDistribution(explicit *model.Distribution, payees []model.Address) (model.Distribution, error) {
	if explicit != nil {
		if err := explicit.ValidateStrict(); err != nil {
			return model.Distribution{}, err
		}
		return explicit.Clone(), nil
	}
	if len(payees) != 1 {
		return model.Distribution{}, errors.Wrapf(model.ErrPercentageSumMismatch,
			"no distribution supplied and %d payees are eligible", len(payees))
	}
	return model.Distribution{
		MemberPercentages: []model.MemberPercentage{{Addr: payees[0], Percentage: model.ParseMustPercentage("1")}},
		RemainderAddr:     payees[0],
	}, nil
}
