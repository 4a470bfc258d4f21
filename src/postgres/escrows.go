package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type EscrowRow struct {
	ID            string
	Competition   string
	Owner         model.Address
	Status        string
	SettledHeight uint64
}

func PutEscrow(ctx context.Context, row EscrowRow, dues []model.Due) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to begin transaction for PutEscrow")
		}
		defer tx.Rollback(ctx)
		_, err = conn.Exec(ctx,
			`INSERT into escrows(id, competition, owner, status, settled_height, created)
				VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			row.ID, row.Competition, row.Owner, row.Status, row.SettledHeight, time.Now().UTC())
		if err != nil {
			return errors.Wrapf(err, "failed to record escrow %s", row.ID)
		}
		for _, due := range dues {
			encoded, err := json.Marshal(due.Balance)
			if err != nil {
				return errors.Wrap(err, "failed to marshal due balance to json")
			}
			_, err = conn.Exec(ctx,
				`INSERT into dues(escrow_id, party, balance)
					VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				row.ID, due.Party, encoded)
			if err != nil {
				return errors.Wrapf(err, "failed to record due for %s", due.Party)
			}
		}
		return tx.Commit(ctx)
	})
}

func UpdateEscrowStatus(ctx context.Context, id string, status string, settledHeight uint64) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`UPDATE escrows SET status = $1, settled_height = $2 WHERE id = $3`,
			status, settledHeight, id)
		return errors.Wrapf(err, "failed updating status for escrow %s", id)
	})
}

func GetEscrow(ctx context.Context, id string) (*EscrowRow, []model.Due, error) {
	var row *EscrowRow
	var dues []model.Due
	return row, dues, DoQuery(ctx, func(conn *pgx.Conn) error {
		fetched := EscrowRow{}
		err := conn.QueryRow(ctx,
			`SELECT id, competition, owner, status, settled_height FROM escrows WHERE id = $1 OR competition = $1`,
			id).Scan(&fetched.ID, &fetched.Competition, &fetched.Owner, &fetched.Status, &fetched.SettledHeight)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errors.Wrapf(model.ErrNotFound, "no escrow %s", id)
			}
			return errors.Wrapf(err, "failed fetching escrow %s", id)
		}
		cur, err := conn.Query(ctx,
			`SELECT party, balance FROM dues WHERE escrow_id = $1 ORDER BY party`, fetched.ID)
		if err != nil {
			return errors.Wrap(err, "failed fetching dues")
		}
		defer cur.Close()
		for cur.Next() {
			var party, data string
			if err := cur.Scan(&party, &data); err != nil {
				return errors.Wrap(err, "failed unmarshalling data")
			}
			due := model.Due{Party: model.Address(party)}
			if err := json.Unmarshal([]byte(data), &due.Balance); err != nil {
				continue
			}
			dues = append(dues, due)
		}
		row = &fetched
		return nil
	})
}

func GetEscrowsByStatus(ctx context.Context, status string, limit int) ([]EscrowRow, error) {
	var fetched []EscrowRow
	return fetched, DoQuery(ctx, func(conn *pgx.Conn) error {
		cur, err := conn.Query(ctx,
			`SELECT id, competition, owner, status, settled_height FROM escrows
				WHERE status = $1 ORDER BY created LIMIT $2`, status, limit)
		if err != nil {
			return errors.Wrap(err, "failed to fetch escrows from database")
		}
		defer cur.Close()
		for cur.Next() {
			row := EscrowRow{}
			if err := cur.Scan(&row.ID, &row.Competition, &row.Owner, &row.Status, &row.SettledHeight); err != nil {
				return errors.Wrap(err, "failed unmarshalling data")
			}
			fetched = append(fetched, row)
		}
		return nil
	})
}
