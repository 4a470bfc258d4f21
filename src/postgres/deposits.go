package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// PutDeposit journals one confirmed deposit. The journal is append-only;
// replaying it in order rebuilds a party's cumulative contribution.
func PutDeposit(ctx context.Context, escrowID string, party model.Address, delta model.Balance, height uint64) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		encoded, err := json.Marshal(delta)
		if err != nil {
			return errors.Wrap(err, "failed to marshal deposit to json")
		}
		_, err = conn.Exec(ctx,
			`INSERT into deposits(escrow_id, party, balance, height, recorded)
				VALUES ($1, $2, $3, $4, $5)`,
			escrowID, party, encoded, height, time.Now().UTC())
		if err != nil {
			return errors.Wrapf(err, "failed to record deposit for %s", party)
		}
		return nil
	})
}

// GetDeposits replays an escrow's deposit journal in recorded order.
func GetDeposits(ctx context.Context, escrowID string) (map[model.Address][]model.Balance, error) {
	var fetched map[model.Address][]model.Balance
	return fetched, DoQuery(ctx, func(conn *pgx.Conn) error {
		cur, err := conn.Query(ctx,
			`SELECT party, balance FROM deposits WHERE escrow_id = $1 ORDER BY recorded`, escrowID)
		if err != nil {
			return errors.Wrap(err, "failed to fetch deposits from database")
		}
		defer cur.Close()
		fetched = map[model.Address][]model.Balance{}
		for cur.Next() {
			var party, data string
			if err := cur.Scan(&party, &data); err != nil {
				return errors.Wrap(err, "failed unmarshalling data")
			}
			balance := model.Balance{}
			if err := json.Unmarshal([]byte(data), &balance); err != nil {
				continue
			}
			fetched[model.Address(party)] = append(fetched[model.Address(party)], balance)
		}
		return nil
	})
}
