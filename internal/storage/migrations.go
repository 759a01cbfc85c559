package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schemas holds the DDL per dialect. Each statement is idempotent.
var schemas = map[Dialect][]string{
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS kv (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	},
	DialectMySQL: {
		`CREATE TABLE IF NOT EXISTS kv (
			name       VARCHAR(191) NOT NULL PRIMARY KEY,
			value      MEDIUMTEXT   NOT NULL,
			updated_at VARCHAR(40)  NOT NULL
		) DEFAULT CHARSET=utf8mb4`,
	},
}

// migrate executes every schema statement of the dialect in order.
func migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts, ok := schemas[d]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", d)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}
