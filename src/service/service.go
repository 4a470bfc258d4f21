package service

import (
	"context"

	"github.com/arenalabs/escrowd/src/escrow"
	"github.com/arenalabs/escrowd/src/model"
	"github.com/arenalabs/escrowd/src/postgres"
	"github.com/arenalabs/escrowd/src/queryserver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Service is the mutation surface the competition host drives. Every call
// applies the change to the live registry first, then writes it through to
// the durable store; the in-memory engine stays authoritative and the
// store is what rehydration replays.
type Service struct {
	registry *escrow.Registry
	cache    *queryserver.SnapshotCache
	logger   *zap.Logger
}

func NewService(registry *escrow.Registry, cache *queryserver.SnapshotCache, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		cache:    cache,
		logger:   logger.Named("service"),
	}
}

func (s *Service) Registry() *escrow.Registry { return s.registry }

// CreateEscrow instantiates and persists an escrow for a competition.
func (s *Service) CreateEscrow(ctx context.Context, competition string, owner model.Address, dues []model.Due) (*escrow.Escrow, error) {
	e, err := s.registry.Create(competition, owner, dues)
	if err != nil {
		return nil, err
	}
	row := postgres.EscrowRow{
		ID:          e.ID(),
		Competition: competition,
		Owner:       owner,
		Status:      string(escrow.StatusOpen),
	}
	if err := postgres.PutEscrow(ctx, row, dues); err != nil {
		return nil, errors.Wrapf(err, "escrow %s created but not persisted", e.ID())
	}
	s.logger.Info("created escrow",
		zap.String("escrow", e.ID()), zap.String("competition", competition))
	return e, nil
}

// RecordDeposit credits a deposit and journals it.
func (s *Service) RecordDeposit(ctx context.Context, escrowID string, party model.Address, delta model.Balance, height uint64) error {
	e, err := s.registry.Get(escrowID)
	if err != nil {
		return err
	}
	if err := e.RecordDeposit(party, delta); err != nil {
		return err
	}
	if err := postgres.PutDeposit(ctx, e.ID(), party, delta, height); err != nil {
		return errors.Wrapf(err, "deposit recorded but not journaled for %s", party)
	}
	return nil
}

// SetPreset appends a preset snapshot to the log, the store, and the cache.
func (s *Service) SetPreset(ctx context.Context, owner model.Address, dist model.Distribution, height uint64) error {
	if err := s.registry.Presets().Set(owner, dist, height); err != nil {
		return err
	}
	var persisted *model.Distribution
	if len(dist.MemberPercentages) > 0 {
		d := dist.Clone()
		persisted = &d
	}
	if err := postgres.PutSnapshot(ctx, owner, height, persisted); err != nil {
		return errors.Wrapf(err, "preset set but not persisted for %s", owner)
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, owner, height, persisted); err != nil {
			s.logger.Warn("failed caching preset snapshot", zap.Error(err))
		}
	}
	return nil
}

// RemovePreset records a clear at height. History below stays queryable.
func (s *Service) RemovePreset(ctx context.Context, owner model.Address, height uint64) error {
	if err := s.registry.Presets().Remove(owner, height); err != nil {
		return err
	}
	if err := postgres.PutSnapshot(ctx, owner, height, nil); err != nil {
		return errors.Wrapf(err, "preset cleared but not persisted for %s", owner)
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, owner, height, nil); err != nil {
			s.logger.Warn("failed caching preset clear", zap.Error(err))
		}
	}
	return nil
}

// SetLock applies the owner's administrative freeze (or lifts it).
func (s *Service) SetLock(ctx context.Context, escrowID string, caller model.Address, value bool) error {
	e, err := s.registry.Get(escrowID)
	if err != nil {
		return err
	}
	if err := e.SetLock(caller, value); err != nil {
		return err
	}
	if err := postgres.UpdateEscrowStatus(ctx, e.ID(), string(e.Status()), 0); err != nil {
		return errors.Wrapf(err, "lock applied but not persisted for %s", e.ID())
	}
	return nil
}

// Distribute settles the escrow and persists the payout credits as owed,
// handing them to the payout pipeline. Any league rating records the host
// computed for the match ride along on the emitted event.
func (s *Service) Distribute(ctx context.Context, escrowID string, explicit *model.Distribution, height uint64, force bool, ratings []model.RatingAdjustment) (*model.SettlementEvent, error) {
	e, err := s.registry.Get(escrowID)
	if err != nil {
		return nil, err
	}
	ev, err := e.Distribute(explicit, height, force)
	if err != nil {
		return nil, err
	}
	ev.Ratings = ratings
	if err := postgres.PutCredits(ctx, e.ID(), ev.Payouts, height); err != nil {
		return ev, errors.Wrapf(err, "settlement committed but credits not persisted for %s", e.ID())
	}
	if err := postgres.UpdateEscrowStatus(ctx, e.ID(), string(escrow.StatusSettled), height); err != nil {
		return ev, errors.Wrapf(err, "settlement committed but status not persisted for %s", e.ID())
	}
	s.logger.Info("settled escrow",
		zap.String("escrow", e.ID()), zap.Uint64("height", height), zap.Bool("forced", force))
	return ev, nil
}

// Withdraw pays out a settled credit. The payouts table is the consumed
// record shared with the flush pipeline: the credit is claimed there first,
// so a credit the pipeline already sent cannot be paid a second time.
func (s *Service) Withdraw(ctx context.Context, escrowID string, requester model.Address) (model.Balance, error) {
	e, err := s.registry.Get(escrowID)
	if err != nil {
		return model.Balance{}, err
	}
	claimed, err := postgres.ClaimOwedCredit(ctx, e.ID(), requester)
	if err != nil {
		return model.Balance{}, err
	}
	if !claimed {
		return model.Balance{}, errors.Wrapf(model.ErrNothingToWithdraw, "credit for %s already submitted or paid", requester)
	}
	return e.Withdraw(requester)
}
