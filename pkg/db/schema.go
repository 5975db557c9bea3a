// pkg/db/schema.go
package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

// The DDL below is accepted by both PostgreSQL and SQLite (3.24+), so a single
// schema serves production and embedded runs. Money and percentages live in
// BIGINT *_minor columns holding 1/10^4 units; SQLite would store NUMERIC as
// a binary float. The balance ceiling makes SQLite reject an addition that
// overflows into REAL.
var walletTables = `
CREATE TABLE IF NOT EXISTS %[1]s_wallets (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	user_email  TEXT NOT NULL DEFAULT '',
	balance_minor     BIGINT NOT NULL DEFAULT 0 CHECK (balance_minor >= 0 AND balance_minor <= 9000000000000000000),
	currency    TEXT NOT NULL,
	unit_value_minor  BIGINT,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS %[1]s_commission_wallets (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	user_email  TEXT NOT NULL DEFAULT '',
	balance_minor     BIGINT NOT NULL DEFAULT 0 CHECK (balance_minor >= 0 AND balance_minor <= 9000000000000000000),
	currency    TEXT NOT NULL,
	unit_value_minor  BIGINT,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS %[1]s_transactions (
	id              TEXT PRIMARY KEY,
	wallet_id       TEXT NOT NULL,
	wallet_type     TEXT NOT NULL,
	type            TEXT NOT NULL,
	amount_minor    BIGINT NOT NULL CHECK (amount_minor > 0),
	currency        TEXT NOT NULL,
	reference_type  TEXT NOT NULL,
	reference_id    TEXT,
	status          TEXT NOT NULL,
	reason          TEXT,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_transactions_wallet ON %[1]s_transactions (wallet_id, created_at);
CREATE TABLE IF NOT EXISTS %[1]s_commissions (
	bet_type    TEXT PRIMARY KEY,
	percentage_minor  BIGINT NOT NULL CHECK (percentage_minor >= 0 AND percentage_minor <= 1000000),
	updated_at  TIMESTAMP NOT NULL
)`

const sharedTables = `
CREATE TABLE IF NOT EXISTS actors (
	id                      TEXT PRIMARY KEY,
	email                   TEXT NOT NULL DEFAULT '',
	kind                    TEXT NOT NULL,
	can_process_payment     BOOLEAN,
	can_convert_commission  BOOLEAN,
	created_at              TIMESTAMP NOT NULL,
	updated_at              TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS payment_limits (
	id                  TEXT PRIMARY KEY,
	max_payment_minor   BIGINT NOT NULL,
	currency            TEXT NOT NULL,
	updated_at          TIMESTAMP NOT NULL,
	updated_by          TEXT
);
CREATE TABLE IF NOT EXISTS wallet_credit_history (
	id              TEXT PRIMARY KEY,
	admin_id        TEXT NOT NULL,
	admin_email     TEXT,
	recipient_id    TEXT NOT NULL,
	recipient_type  TEXT NOT NULL,
	amount_minor    BIGINT NOT NULL,
	currency        TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wallet_credit_history_recipient ON wallet_credit_history (recipient_id, created_at);
CREATE TABLE IF NOT EXISTS lotto_participations (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	user_type          TEXT NOT NULL,
	bet_type           TEXT NOT NULL DEFAULT 'simple',
	stake_minor        BIGINT NOT NULL DEFAULT 0,
	currency           TEXT NOT NULL,
	purchase_date      TIMESTAMP NOT NULL,
	is_winner          BOOLEAN NOT NULL DEFAULT FALSE,
	win_amount_minor   BIGINT NOT NULL DEFAULT 0,
	paid               BOOLEAN NOT NULL DEFAULT FALSE,
	paid_at            TIMESTAMP,
	paid_by            TEXT,
	payment_method     TEXT,
	payment_amount_minor     BIGINT,
	commission_amount_minor  BIGINT,
	status             TEXT NOT NULL DEFAULT 'active',
	cancelled_by       TEXT,
	cancelled_at       TIMESTAMP,
	cancellation_fee_minor   BIGINT,
	created_at         TIMESTAMP NOT NULL,
	updated_at         TIMESTAMP NOT NULL
)`

var kindPattern = regexp.MustCompile(`^[a-z][a-z_]*$`)

// Migrate creates every ledger table that does not exist yet. Each kind gets
// its own set of <kind>_* wallet tables.
func Migrate(ctx context.Context, db *sqlx.DB, kinds ...string) error {
	statements := splitStatements(sharedTables)
	for _, kind := range kinds {
		if !kindPattern.MatchString(kind) {
			return fmt.Errorf("invalid actor kind %q for table names", kind)
		}
		statements = append(statements, splitStatements(fmt.Sprintf(walletTables, kind))...)
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func splitStatements(ddl string) []string {
	var out []string
	for _, stmt := range strings.Split(ddl, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
