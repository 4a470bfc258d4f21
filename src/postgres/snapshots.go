package postgres

import (
	"context"
	"encoding/json"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// PutSnapshot appends one preset distribution snapshot for an owner. A nil
// distribution records a clear. Writes at an existing height supersede that
// height's entry; earlier heights are never touched.
func PutSnapshot(ctx context.Context, owner model.Address, height uint64, dist *model.Distribution) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		var encoded []byte
		if dist != nil {
			var err error
			encoded, err = json.Marshal(dist)
			if err != nil {
				return errors.Wrap(err, "failed to marshal distribution to json")
			}
		}
		_, err := conn.Exec(ctx,
			`INSERT into distribution_snapshots(owner, height, distribution)
				VALUES ($1, $2, $3)
				ON CONFLICT (owner, height) DO UPDATE SET distribution = $3`,
			owner, height, encoded)
		if err != nil {
			return errors.Wrapf(err, "failed to record snapshot for %s", owner)
		}
		return nil
	})
}

// GetSnapshotAt resolves the preset effective at height: the newest row
// with height <= the query height. nil result means no preset (or cleared).
func GetSnapshotAt(ctx context.Context, owner model.Address, height *uint64) (*model.Distribution, error) {
	var dist *model.Distribution
	return dist, DoQuery(ctx, func(conn *pgx.Conn) error {
		var data []byte
		var err error
		if height != nil {
			err = conn.QueryRow(ctx,
				`SELECT distribution FROM distribution_snapshots
					WHERE owner = $1 AND height <= $2 ORDER BY height DESC LIMIT 1`,
				owner, *height).Scan(&data)
		} else {
			err = conn.QueryRow(ctx,
				`SELECT distribution FROM distribution_snapshots
					WHERE owner = $1 ORDER BY height DESC LIMIT 1`,
				owner).Scan(&data)
		}
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return errors.Wrapf(err, "failed fetching snapshot for %s", owner)
		}
		if len(data) == 0 {
			return nil // cleared
		}
		fetched := model.Distribution{}
		if err := json.Unmarshal(data, &fetched); err != nil {
			return errors.Wrap(err, "failed unmarshalling data")
		}
		dist = &fetched
		return nil
	})
}

// GetSnapshotOwners lists every address with at least one recorded
// snapshot, for replaying the preset log at startup.
func GetSnapshotOwners(ctx context.Context) ([]model.Address, error) {
	var owners []model.Address
	return owners, DoQuery(ctx, func(conn *pgx.Conn) error {
		cur, err := conn.Query(ctx,
			`SELECT DISTINCT owner FROM distribution_snapshots ORDER BY owner`)
		if err != nil {
			return errors.Wrap(err, "failed to fetch snapshot owners from database")
		}
		defer cur.Close()
		for cur.Next() {
			var owner string
			if err := cur.Scan(&owner); err != nil {
				return errors.Wrap(err, "failed unmarshalling data")
			}
			owners = append(owners, model.Address(owner))
		}
		return nil
	})
}

// GetSnapshotLog returns an owner's full snapshot history, oldest first.
func GetSnapshotLog(ctx context.Context, owner model.Address) ([]uint64, []*model.Distribution, error) {
	var heights []uint64
	var dists []*model.Distribution
	return heights, dists, DoQuery(ctx, func(conn *pgx.Conn) error {
		cur, err := conn.Query(ctx,
			`SELECT height, distribution FROM distribution_snapshots
				WHERE owner = $1 ORDER BY height`, owner)
		if err != nil {
			return errors.Wrap(err, "failed to fetch snapshots from database")
		}
		defer cur.Close()
		for cur.Next() {
			var height uint64
			var data []byte
			if err := cur.Scan(&height, &data); err != nil {
				return errors.Wrap(err, "failed unmarshalling data")
			}
			heights = append(heights, height)
			if len(data) == 0 {
				dists = append(dists, nil)
				continue
			}
			fetched := model.Distribution{}
			if err := json.Unmarshal(data, &fetched); err != nil {
				dists = append(dists, nil)
				continue
			}
			dists = append(dists, &fetched)
		}
		return nil
	})
}
