package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-socialink/core"
	socialinkmigrations "github.com/goliatone/go-socialink/migrations"
	"github.com/goliatone/go-socialink/providers/devkit"
	sqlstore "github.com/goliatone/go-socialink/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-socialink-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"socialink_connections",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "socialink_connections" {
		t.Fatalf("expected socialink_connections table, got %q", tableName)
	}
}

func TestConnectionStore_Conformance(t *testing.T) {
	store := newConnectionStore(t)
	if err := devkit.ValidateConnectionStoreConformance(context.Background(), store, "client-conformance"); err != nil {
		t.Fatalf("sql store conformance: %v", err)
	}
}

func TestConnectionStore_SaveProfileKeyIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := newConnectionStore(t)

	first, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{
		Identity:    "client-1",
		ProfileKey:  "pk_first",
		ProviderRef: "client-1",
	})
	if err != nil {
		t.Fatalf("save first key: %v", err)
	}
	if first.ProviderProfileKey != "pk_first" {
		t.Fatalf("expected pk_first, got %q", first.ProviderProfileKey)
	}
	if first.State() != core.LinkStatePending {
		t.Fatalf("expected pending state, got %q", first.State())
	}

	second, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{
		Identity:   "client-1",
		Email:      "owner@example.com",
		ProfileKey: "pk_second",
	})
	if err != nil {
		t.Fatalf("save second key: %v", err)
	}
	if second.ProviderProfileKey != "pk_first" {
		t.Fatalf("expected stored key to be kept, got %q", second.ProviderProfileKey)
	}
	if second.ID != first.ID {
		t.Fatalf("expected a single record, got ids %q and %q", first.ID, second.ID)
	}
	if second.Email != "owner@example.com" {
		t.Fatalf("expected email to be filled in, got %q", second.Email)
	}

	third, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{
		Identity:   "client-1",
		Email:      "other@example.com",
		ProfileKey: "pk_third",
	})
	if err != nil {
		t.Fatalf("save third key: %v", err)
	}
	if third.Email != "owner@example.com" {
		t.Fatalf("expected existing email to be kept, got %q", third.Email)
	}
}

func TestConnectionStore_SaveProfileKeyRequiresKey(t *testing.T) {
	store := newConnectionStore(t)
	_, err := store.SaveProfileKey(context.Background(), core.SaveProfileKeyInput{Identity: "client-1"})
	if !errors.Is(err, core.ErrProfileKeyRequired) {
		t.Fatalf("expected ErrProfileKeyRequired, got %v", err)
	}
}

func TestConnectionStore_GetMissingReturnsNotFound(t *testing.T) {
	store := newConnectionStore(t)
	_, err := store.Get(context.Background(), "nobody")
	if !errors.Is(err, core.ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestConnectionStore_MarkConnectedRefreshesTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newConnectionStore(t)

	if _, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{Identity: "client-1", ProfileKey: "pk_1"}); err != nil {
		t.Fatalf("save key: %v", err)
	}

	firstAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	connected, err := store.MarkConnected(ctx, core.MarkConnectedInput{
		Identity:    "client-1",
		ConnectedAt: firstAt,
	})
	if err != nil {
		t.Fatalf("mark connected: %v", err)
	}
	if !connected.Connected || connected.ConnectionLabel != core.ConnectedLabel {
		t.Fatalf("expected connected record with default label, got %#v", connected)
	}

	again, err := store.MarkConnected(ctx, core.MarkConnectedInput{
		Identity:    "client-1",
		ConnectedAt: firstAt.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("mark connected again: %v", err)
	}
	secondAt := firstAt.Add(24 * time.Hour)
	if again.ConnectedAt == nil || !again.ConnectedAt.Equal(secondAt) {
		t.Fatalf("expected connection time to be refreshed, got %v", again.ConnectedAt)
	}

	stored, err := store.Get(ctx, "client-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State() != core.LinkStateConnected {
		t.Fatalf("expected connected state, got %q", stored.State())
	}
	if stored.ConnectedAt == nil || !stored.ConnectedAt.Equal(secondAt) {
		t.Fatalf("expected stored connection time %v, got %v", secondAt, stored.ConnectedAt)
	}
}

func TestConnectionStore_MarkConnectedWithoutKey(t *testing.T) {
	ctx := context.Background()
	store := newConnectionStore(t)

	if _, err := store.MarkConnected(ctx, core.MarkConnectedInput{Identity: "client-1"}); !errors.Is(err, core.ErrProfileKeyRequired) {
		t.Fatalf("expected ErrProfileKeyRequired, got %v", err)
	}

	record, err := store.MarkConnected(ctx, core.MarkConnectedInput{Identity: "client-2", ProfileKey: "pk_2"})
	if err != nil {
		t.Fatalf("mark connected with key: %v", err)
	}
	if record.ProviderProfileKey != "pk_2" || !record.Connected {
		t.Fatalf("expected record created as connected, got %#v", record)
	}
}

func TestConnectionStore_MarkConnectedStampsCheck(t *testing.T) {
	ctx := context.Background()
	store := newConnectionStore(t)

	if _, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{Identity: "client-1", ProfileKey: "pk_1"}); err != nil {
		t.Fatalf("save key: %v", err)
	}
	record, err := store.MarkConnected(ctx, core.MarkConnectedInput{Identity: "client-1"})
	if err != nil {
		t.Fatalf("mark connected: %v", err)
	}
	if record.LastCheckedAt != nil {
		t.Fatalf("expected callback write to leave last check empty, got %v", record.LastCheckedAt)
	}

	checkedAt := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	if _, err := store.MarkConnected(ctx, core.MarkConnectedInput{Identity: "client-1", ConnectedAt: checkedAt, CheckedAt: checkedAt}); err != nil {
		t.Fatalf("mark connected from check: %v", err)
	}
	record, err = store.Get(ctx, "client-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.LastCheckedAt == nil || !record.LastCheckedAt.Equal(checkedAt) {
		t.Fatalf("expected last check %v, got %v", checkedAt, record.LastCheckedAt)
	}
}

func TestConnectionStore_ListPending(t *testing.T) {
	ctx := context.Background()
	store := newConnectionStore(t)

	for _, identity := range []string{"client-a", "client-b", "client-c"} {
		if _, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{Identity: identity, ProfileKey: "pk_" + identity}); err != nil {
			t.Fatalf("save %s: %v", identity, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := store.MarkConnected(ctx, core.MarkConnectedInput{Identity: "client-b"}); err != nil {
		t.Fatalf("mark connected: %v", err)
	}

	pending, err := store.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(pending))
	}
	if pending[0].Identity != "client-a" || pending[1].Identity != "client-c" {
		t.Fatalf("expected oldest first, got %q then %q", pending[0].Identity, pending[1].Identity)
	}

	limited, err := store.ListPending(ctx, 1)
	if err != nil {
		t.Fatalf("list pending with limit: %v", err)
	}
	if len(limited) != 1 || limited[0].Identity != "client-a" {
		t.Fatalf("expected only client-a, got %#v", limited)
	}
}

func TestRepositoryFactory_WithCacheService(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithCacheService(cacheService))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.ConnectionStore()
	if _, ok := store.(*sqlstore.CachedConnectionStore); !ok {
		t.Fatalf("expected cached connection store, got %T", store)
	}

	if _, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{Identity: "client-1", ProfileKey: "pk_1"}); err != nil {
		t.Fatalf("save key: %v", err)
	}
	before, err := store.Get(ctx, "client-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if before.Connected {
		t.Fatalf("expected pending record")
	}
	if _, err := store.MarkConnected(ctx, core.MarkConnectedInput{Identity: "client-1"}); err != nil {
		t.Fatalf("mark connected: %v", err)
	}
	after, err := store.Get(ctx, "client-1")
	if err != nil {
		t.Fatalf("get after write: %v", err)
	}
	if !after.Connected {
		t.Fatalf("expected cache to be invalidated after mark connected")
	}
}

func TestRepositoryFactory_RejectsUnknownClient(t *testing.T) {
	if _, err := sqlstore.NewRepositoryFactory().BuildStores("not-a-db"); err == nil {
		t.Fatalf("expected unsupported client error")
	}
}

func newConnectionStore(t *testing.T) core.ConnectionStore {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	t.Cleanup(cleanup)

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.ConnectionStore()
	if store == nil {
		t.Fatalf("expected connection store from factory")
	}
	return store
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:socialink-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	err = socialinkmigrations.Register(socialinkmigrations.DialectSQLite, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	})
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
