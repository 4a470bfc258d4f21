package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// PutCredits records settlement payout credits, one row per recipient, all
// starting owed. Called once per escrow, from the settlement commit.
func PutCredits(ctx context.Context, escrowID string, payouts map[model.Address]model.Balance, height uint64) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		rows := [][]any{}
		now := time.Now().UTC()
		for addr, balance := range payouts {
			encoded, err := json.Marshal(balance)
			if err != nil {
				return errors.Wrap(err, "failed to marshal payout balance to json")
			}
			// escrow_id, addr, balance, status, height, updated
			rows = append(rows, []any{
				escrowID, addr, encoded, model.PayoutStatusOwed, height, now,
			})
		}
		_, err := conn.CopyFrom(context.Background(), pgx.Identifier{"payouts"},
			[]string{"escrow_id", "addr", "balance", "status", "height", "updated"}, pgx.CopyFromRows(rows))
		if err != nil {
			return errors.Wrap(err, "failed to write to payouts")
		}
		return nil
	})
}

func GetCreditsByStatus(ctx context.Context, status model.PayoutStatus, limit int) ([]model.PayoutCredit, error) {
	var fetched []model.PayoutCredit
	return fetched, DoQuery(ctx, func(conn *pgx.Conn) error {
		cur, err := conn.Query(ctx,
			`SELECT escrow_id, addr, balance, status, height, tx_id FROM payouts
				WHERE status = $1 ORDER BY updated LIMIT $2`, status, limit)
		if err != nil {
			return errors.Wrap(err, "failed to fetch payouts from database")
		}
		defer cur.Close()
		for cur.Next() {
			credit := model.PayoutCredit{}
			var data []byte
			if err := cur.Scan(&credit.EscrowID, &credit.Addr, &data, &credit.Status, &credit.Height, &credit.TxId); err != nil {
				return errors.Wrap(err, "failed unmarshalling data")
			}
			if err := json.Unmarshal(data, &credit.Balance); err != nil {
				continue
			}
			fetched = append(fetched, credit)
		}
		return nil
	})
}

// GetPendingForAddr sums an address's still-owed credits across escrows.
func GetPendingForAddr(ctx context.Context, addr model.Address) (model.Balance, error) {
	pending := model.Balance{}
	return pending, DoQuery(ctx, func(conn *pgx.Conn) error {
		cur, err := conn.Query(ctx,
			`SELECT balance FROM payouts WHERE addr = $1 AND status = $2`, addr, model.PayoutStatusOwed)
		if err != nil {
			return errors.Wrap(err, "failed to fetch pending payouts")
		}
		defer cur.Close()
		for cur.Next() {
			var data []byte
			if err := cur.Scan(&data); err != nil {
				return errors.Wrap(err, "failed unmarshalling data")
			}
			balance := model.Balance{}
			if err := json.Unmarshal(data, &balance); err != nil {
				continue
			}
			if err := pending.Add(balance); err != nil {
				return errors.Wrap(err, "failed summing pending balances")
			}
		}
		return nil
	})
}

func MarkCreditSubmitted(ctx context.Context, escrowID string, addr model.Address, txID string) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`UPDATE payouts SET status = $1, tx_id = $2, updated = $3
				WHERE escrow_id = $4 AND addr = $5 AND status = $6`,
			model.PayoutStatusSubmitted, txID, time.Now().UTC(), escrowID, addr, model.PayoutStatusOwed)
		return errors.Wrapf(err, "failed marking payout submitted for %s", addr)
	})
}

// ClaimOwedCredit flips an owed credit to confirmed. A credit the pipeline
// already submitted or errored is left alone; the caller must not pay it.
func ClaimOwedCredit(ctx context.Context, escrowID string, addr model.Address) (bool, error) {
	var claimed bool
	return claimed, DoQuery(ctx, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx,
			`UPDATE payouts SET status = $1, updated = $2
				WHERE escrow_id = $3 AND addr = $4 AND status = $5`,
			model.PayoutStatusConfirmed, time.Now().UTC(), escrowID, addr, model.PayoutStatusOwed)
		if err != nil {
			return errors.Wrapf(err, "failed claiming payout for %s", addr)
		}
		claimed = tag.RowsAffected() == 1
		return nil
	})
}

func MarkCreditStatus(ctx context.Context, escrowID string, addr model.Address, status model.PayoutStatus) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`UPDATE payouts SET status = $1, updated = $2 WHERE escrow_id = $3 AND addr = $4`,
			status, time.Now().UTC(), escrowID, addr)
		return errors.Wrapf(err, "failed marking payout %s for %s", status, addr)
	})
}
