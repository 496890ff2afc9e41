package db

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/kauri-edtech/smssync/migrations"
)

// Migrate brings the schema up to date from the embedded goose migrations.
func Migrate(database *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(database, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
