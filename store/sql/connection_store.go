package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-socialink/core"
	"github.com/uptrace/bun"
)

type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
	now  func() time.Time
}

func NewConnectionStore(db *bun.DB) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*connectionRecord](db, connectionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	return &ConnectionStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ConnectionStore) Get(ctx context.Context, identity string) (core.ConnectionRecord, error) {
	if s == nil || s.repo == nil {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: identity is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("identity", "=", identity),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.ConnectionRecord{}, err
	}
	if len(records) == 0 {
		return core.ConnectionRecord{}, core.ErrConnectionNotFound
	}
	return records[0].toDomain(), nil
}

// SaveProfileKey stores the provider key for an identity. A key that is
// already present is never replaced; the stored record is returned instead.
func (s *ConnectionStore) SaveProfileKey(ctx context.Context, in core.SaveProfileKeyInput) (core.ConnectionRecord, error) {
	if s == nil || s.db == nil {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: identity is required")
	}
	key := strings.TrimSpace(in.ProfileKey)
	if key == "" {
		return core.ConnectionRecord{}, core.ErrProfileKeyRequired
	}

	var stored *connectionRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		record := newConnectionRecord(identity, in.Email, now)
		record.ProviderProfileKey = stringPointer(key)
		record.ProviderRef = strings.TrimSpace(in.ProviderRef)
		if _, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (identity) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*connectionRecord)(nil)).
			Set("provider_profile_key = ?", key).
			Set("provider_ref = ?", record.ProviderRef).
			Set("updated_at = ?", now).
			Where("identity = ?", identity).
			Where("provider_profile_key IS NULL").
			Exec(ctx); err != nil {
			return err
		}

		if email := strings.TrimSpace(in.Email); email != "" {
			if _, err := tx.NewUpdate().
				Model((*connectionRecord)(nil)).
				Set("email = ?", email).
				Where("identity = ?", identity).
				Where("email = ''").
				Exec(ctx); err != nil {
				return err
			}
		}

		found, err := findConnectionByIdentity(ctx, tx, identity)
		if err != nil {
			return err
		}
		stored = found
		return nil
	})
	if err != nil {
		return core.ConnectionRecord{}, err
	}
	return stored.toDomain(), nil
}

// MarkConnected flips the connected flag and stamps connected_at. Repeated
// calls refresh the timestamp; the flag never goes back to false.
func (s *ConnectionStore) MarkConnected(ctx context.Context, in core.MarkConnectedInput) (core.ConnectionRecord, error) {
	if s == nil || s.db == nil {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: identity is required")
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = core.ConnectedLabel
	}

	var stored *connectionRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		connectedAt := in.ConnectedAt.UTC()
		if in.ConnectedAt.IsZero() {
			connectedAt = now
		}
		var checkedAt *time.Time
		if !in.CheckedAt.IsZero() {
			value := in.CheckedAt.UTC()
			checkedAt = &value
		}

		existing, err := findConnectionByIdentity(ctx, tx, identity)
		if err != nil && !errors.Is(err, core.ErrConnectionNotFound) {
			return err
		}
		if existing == nil {
			key := strings.TrimSpace(in.ProfileKey)
			if key == "" {
				return core.ErrProfileKeyRequired
			}
			record := newConnectionRecord(identity, "", now)
			record.ProviderProfileKey = stringPointer(key)
			record.Connected = true
			record.ConnectedAt = &connectedAt
			record.LastCheckedAt = checkedAt
			record.ConnectionLabel = label
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
			stored = record
			return nil
		}

		if existing.profileKey() == "" {
			key := strings.TrimSpace(in.ProfileKey)
			if key == "" {
				return core.ErrProfileKeyRequired
			}
			existing.ProviderProfileKey = stringPointer(key)
		}
		existing.ConnectedAt = &connectedAt
		existing.Connected = true
		existing.ConnectionLabel = label
		existing.UpdatedAt = now
		columns := []string{"provider_profile_key", "connected", "connected_at", "connection_label", "updated_at"}
		if checkedAt != nil {
			existing.LastCheckedAt = checkedAt
			columns = append(columns, "last_checked_at")
		}
		if _, err := tx.NewUpdate().
			Model(existing).
			Column(columns...).
			Where("id = ?", existing.ID).
			Exec(ctx); err != nil {
			return err
		}
		stored = existing
		return nil
	})
	if err != nil {
		return core.ConnectionRecord{}, err
	}
	return stored.toDomain(), nil
}

// ListPending returns records that hold a provider key but were never
// confirmed as connected, oldest first.
func (s *ConnectionStore) ListPending(ctx context.Context, limit int) ([]core.ConnectionRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("?TableAlias.connected = ?", false).
				Where("?TableAlias.provider_profile_key IS NOT NULL")
			if limit > 0 {
				q = q.Limit(limit)
			}
			return q
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.ConnectionRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func findConnectionByIdentity(ctx context.Context, db bun.IDB, identity string) (*connectionRecord, error) {
	record := &connectionRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.identity = ?", identity).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrConnectionNotFound
		}
		return nil, err
	}
	return record, nil
}
