package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Dialect is the goose dialect of the migrations in FS.
const Dialect = "clickhouse"

// Up applies every pending migration from FS to db.
func Up(db *sql.DB) error {
	goose.SetBaseFS(FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(Dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
