package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	socialink "github.com/goliatone/go-socialink"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsRoot = "data/sql/migrations"

// DialectForDriver maps a database/sql driver name to the migration dialect
// that matches its schema files.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// FS returns the connection table migrations for dialect. Postgres files sit
// at the root of the migrations directory, sqlite files in its sqlite/ child.
func FS(dialect string) (fs.FS, error) {
	dir := migrationsRoot
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres:
	case DialectSQLite:
		dir += "/sqlite"
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	sub, err := fs.Sub(socialink.GetMigrationsFS(), dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", dir, err)
	}
	matches, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", dir)
	}
	return sub, nil
}

// Register resolves the migrations for dialect and hands them to registerFn,
// usually a persistence client's RegisterSQLMigrations.
func Register(dialect string, registerFn func(fs.FS)) error {
	if registerFn == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	fsys, err := FS(dialect)
	if err != nil {
		return err
	}
	registerFn(fsys)
	return nil
}
