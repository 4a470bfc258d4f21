package postgres

import (
	"context"

	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS escrows (
	id             TEXT PRIMARY KEY,
	competition    TEXT NOT NULL UNIQUE,
	owner          TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'open',
	settled_height BIGINT NOT NULL DEFAULT 0,
	created        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dues (
	escrow_id TEXT NOT NULL REFERENCES escrows(id),
	party     TEXT NOT NULL,
	balance   JSONB NOT NULL,
	PRIMARY KEY (escrow_id, party)
);

CREATE TABLE IF NOT EXISTS deposits (
	id        BIGSERIAL PRIMARY KEY,
	escrow_id TEXT NOT NULL REFERENCES escrows(id),
	party     TEXT NOT NULL,
	balance   JSONB NOT NULL,
	height    BIGINT NOT NULL DEFAULT 0,
	recorded  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS distribution_snapshots (
	owner        TEXT NOT NULL,
	height       BIGINT NOT NULL,
	distribution JSONB,
	PRIMARY KEY (owner, height)
);

CREATE TABLE IF NOT EXISTS payouts (
	escrow_id TEXT NOT NULL,
	addr      TEXT NOT NULL,
	balance   JSONB NOT NULL,
	status    TEXT NOT NULL DEFAULT 'owed',
	height    BIGINT NOT NULL DEFAULT 0,
	tx_id     TEXT,
	updated   TIMESTAMP NOT NULL,
	PRIMARY KEY (escrow_id, addr)
);
`

// InitSchema creates the tables if they don't exist yet. Deployments with
// managed migrations can skip this and own the DDL themselves.
func InitSchema(ctx context.Context) error {
	return errors.Wrap(DoExec(ctx, schema), "failed initializing schema")
}
