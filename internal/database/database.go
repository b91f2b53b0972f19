// Package database opens the SQLite database shared by the catalog and
// the editor repository.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "modernc.org/sqlite"
)

// Open opens dsn with the modernc SQLite driver and wraps it in an ent
// SQL driver. SQLite allows one writer, so the pool holds one connection.
func Open(ctx context.Context, dsn string) (*entsql.Driver, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable foreign keys explicitly; required for SQLite.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return entsql.OpenDB(dialect.SQLite, db), nil
}

// Builder returns an ent SQL builder for the SQLite dialect.
func Builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// ExecAll runs each statement in order, stopping at the first failure.
func ExecAll(ctx context.Context, ex dialect.ExecQuerier, stmts []string) error {
	for _, stmt := range stmts {
		if err := ex.Exec(ctx, stmt, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}

// QueryRows runs q and calls scan once per row. Rows are closed before
// it returns.
func QueryRows(ctx context.Context, qr dialect.ExecQuerier, q string, args []any, scan func(*entsql.Rows) error) error {
	var rows entsql.Rows
	if err := qr.Query(ctx, q, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
