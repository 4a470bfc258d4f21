package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/arenalabs/escrowd/src/postgres"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type PipelineConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

// StartPipeline flushes owed payout credits through the payer on a ticker
// until the context is cancelled.
func StartPipeline(ctx context.Context, cfg PipelineConfig, payer Payer, logger *zap.Logger) error {
	interval := cfg.FlushInterval
	if interval == 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	logger = logger.Named("payouts")
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping payout pipeline, context cancelled")
			return ctx.Err()
		case <-ticker.C:
			if err := FlushOwed(ctx, cfg, payer, logger); err != nil {
				logger.Error("error flushing owed payouts", zap.Error(err))
			}
		}
	}
}

// FlushOwed sends every owed credit once, marking it submitted with its tx
// id, or error if the payer refused it. Each credit is its own unit of
// work; one bad credit doesn't stall the batch.
func FlushOwed(ctx context.Context, cfg PipelineConfig, payer Payer, logger *zap.Logger) error {
	batch := cfg.BatchSize
	if batch == 0 {
		batch = 1024
	}
	credits, err := postgres.GetCreditsByStatus(ctx, model.PayoutStatusOwed, batch)
	if err != nil {
		return errors.Wrap(err, "failed fetching owed credits from payouts")
	}
	logger.Info(fmt.Sprintf("fetched %d owed credits for flushing", len(credits)))
	for _, credit := range credits {
		txID, err := payer.Send(ctx, credit.Addr, credit.Balance)
		if err != nil {
			logger.Error("failed sending payout", zap.String("addr", string(credit.Addr)), zap.Error(err))
			if err := postgres.MarkCreditStatus(ctx, credit.EscrowID, credit.Addr, model.PayoutStatusError); err != nil {
				logger.Error("failed marking payout errored", zap.Error(err))
			}
			continue
		}
		if err := postgres.MarkCreditSubmitted(ctx, credit.EscrowID, credit.Addr, txID); err != nil {
			logger.Error("failed marking payout submitted", zap.Error(err))
		}
	}
	return nil
}
