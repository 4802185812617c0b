package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
)

import _ "modernc.org/sqlite"

//go:embed schema.sql
var schemaFS embed.FS

// sqlite pragmas applied to every connection.
var connPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// Open opens the sqlite file at path with foreign keys enforced. The store
// serialises writes through a single connection.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?" + strings.Join(pragmaParams(), "&")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

func pragmaParams() []string {
	params := make([]string, 0, len(connPragmas))
	for _, p := range connPragmas {
		params = append(params, "_pragma="+p)
	}
	return params
}

// Init applies the embedded schema and upgrades older databases in place.
func Init(ctx context.Context, db *sql.DB) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return migrateGamesTable(ctx, db)
}

// gamesAddedColumns are missing from games tables created before player
// names were stored.
var gamesAddedColumns = []string{"log_owner", "opponent"}

func migrateGamesTable(ctx context.Context, db *sql.DB) error {
	for _, column := range gamesAddedColumns {
		has, err := tableHasColumn(ctx, db, "games", column)
		if err != nil {
			return fmt.Errorf("inspect games schema: %w", err)
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE games ADD COLUMN %s TEXT NOT NULL DEFAULT ''`, column)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add games.%s: %w", column, err)
		}
	}
	return nil
}

func tableHasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE lower(name) = lower(?)`,
		table, strings.TrimSpace(column),
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
