package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	socialink "github.com/goliatone/go-socialink"
	_ "github.com/mattn/go-sqlite3"
)

func TestFS_ResolvesBothDialects(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		fsys, err := FS(dialect)
		if err != nil {
			t.Fatalf("fs %s: %v", dialect, err)
		}
		if _, err := fs.ReadFile(fsys, "00001_socialink_connections.up.sql"); err != nil {
			t.Fatalf("expected %s connections migration: %v", dialect, err)
		}
	}

	pg, _ := FS(DialectPostgres)
	pgUp, _ := fs.ReadFile(pg, "00001_socialink_connections.up.sql")
	lite, _ := FS(DialectSQLite)
	liteUp, _ := fs.ReadFile(lite, "00001_socialink_connections.up.sql")
	if string(pgUp) == string(liteUp) {
		t.Fatalf("expected dialect specific schema files")
	}

	if _, err := FS("mysql"); err == nil {
		t.Fatalf("expected unsupported dialect error")
	}
}

func TestDialectForDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite3":  DialectSQLite,
		" SQLite ": DialectSQLite,
		"postgres": DialectPostgres,
	}
	for driver, want := range cases {
		got, err := DialectForDriver(driver)
		if err != nil {
			t.Fatalf("dialect for %q: %v", driver, err)
		}
		if got != want {
			t.Fatalf("dialect for %q: expected %q, got %q", driver, want, got)
		}
	}
	if _, err := DialectForDriver("pgx"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestRegister_HandsDialectFilesystem(t *testing.T) {
	var registered []fs.FS
	if err := Register(DialectSQLite, func(fsys fs.FS) {
		registered = append(registered, fsys)
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(registered) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(registered))
	}
	content, err := fs.ReadFile(registered[0], "00001_socialink_connections.up.sql")
	if err != nil {
		t.Fatalf("read registered migration: %v", err)
	}
	if !strings.Contains(string(content), "socialink_connections") {
		t.Fatalf("expected connections table in registered migration")
	}
}

func TestRegister_Validation(t *testing.T) {
	if err := Register(DialectSQLite, nil); err == nil {
		t.Fatalf("expected error for nil register func")
	}
	called := false
	if err := Register("mysql", func(fs.FS) { called = true }); err == nil || called {
		t.Fatalf("expected unsupported dialect to fail before registering, err=%v called=%v", err, called)
	}
}

func TestConnectionsMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := socialink.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_socialink_connections.up.sql",
		"data/sql/migrations/00001_socialink_connections.down.sql",
		"data/sql/migrations/sqlite/00001_socialink_connections.up.sql",
		"data/sql/migrations/sqlite/00001_socialink_connections.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteConnectionsMigration_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-socialink-connections?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(socialink.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_socialink_connections.up.sql"); err != nil {
		t.Fatalf("apply migration up: %v", err)
	}

	insert := `INSERT INTO socialink_connections (id, identity, provider_profile_key, connected) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "row-1", "client-1", "pk_1", false); err != nil {
		t.Fatalf("insert first row: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "row-2", "client-1", "pk_2", false); err == nil {
		t.Fatalf("expected unique identity violation")
	}
	if _, err := db.ExecContext(ctx, insert, "row-3", "client-3", nil, true); err == nil {
		t.Fatalf("expected connected row without key to be rejected")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_socialink_connections.down.sql"); err != nil {
		t.Fatalf("apply migration down: %v", err)
	}
	var tableName string
	err = db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"socialink_connections",
	).Scan(&tableName)
	if err != sql.ErrNoRows {
		t.Fatalf("expected table to be dropped, got name=%q err=%v", tableName, err)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
