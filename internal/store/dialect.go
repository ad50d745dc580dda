package store

import "fmt"

// dialect captures the small set of SQL differences between the supported
// drivers: schema DDL and the single-row upsert clause. Placeholder style is
// handled by sqlx.Rebind, so all queries are written with `?`.
type dialect struct {
	driver string
	schema string
	upsert string
}

// insertColumns is shared by every upsert variant. The table is named
// access_keys because `keys` is a reserved word in MySQL.
const insertColumns = `INSERT INTO access_keys
	(token, tier, tier_label, days, activated, activated_at, expires_at, locked_user, locked_user_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// onConflictUpdate covers PostgreSQL and SQLite, which share the
// ON CONFLICT ... excluded syntax. Only the mutable lifecycle fields are
// overwritten; issuance-time fields stay write-once.
const onConflictUpdate = ` ON CONFLICT (token) DO UPDATE SET
	activated = excluded.activated,
	activated_at = excluded.activated_at,
	expires_at = excluded.expires_at,
	locked_user = excluded.locked_user,
	locked_user_at = excluded.locked_user_at`

const onDuplicateUpdate = ` ON DUPLICATE KEY UPDATE
	activated = VALUES(activated),
	activated_at = VALUES(activated_at),
	expires_at = VALUES(expires_at),
	locked_user = VALUES(locked_user),
	locked_user_at = VALUES(locked_user_at)`

var dialects = map[string]dialect{
	"postgres": {
		driver: "pgx",
		schema: `CREATE TABLE IF NOT EXISTS access_keys (
			token TEXT PRIMARY KEY,
			tier TEXT NOT NULL,
			tier_label TEXT NOT NULL,
			days INTEGER,
			activated BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			locked_user TEXT,
			locked_user_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		upsert: insertColumns + onConflictUpdate,
	},
	"sqlite": {
		driver: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS access_keys (
			token TEXT PRIMARY KEY,
			tier TEXT NOT NULL,
			tier_label TEXT NOT NULL,
			days INTEGER,
			activated INTEGER NOT NULL DEFAULT 0,
			activated_at DATETIME,
			expires_at DATETIME,
			locked_user TEXT,
			locked_user_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		upsert: insertColumns + onConflictUpdate,
	},
	"mysql": {
		driver: "mysql",
		schema: `CREATE TABLE IF NOT EXISTS access_keys (
			token VARCHAR(64) PRIMARY KEY,
			tier VARCHAR(32) NOT NULL,
			tier_label VARCHAR(64) NOT NULL,
			days INT NULL,
			activated BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMP NULL,
			expires_at TIMESTAMP NULL,
			locked_user VARCHAR(255) NULL,
			locked_user_at TIMESTAMP NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		upsert: insertColumns + onDuplicateUpdate,
	},
}

func dialectFor(backend string) (dialect, error) {
	d, ok := dialects[backend]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported sql backend %q (want postgres, sqlite, or mysql)", backend)
	}
	return d, nil
}
