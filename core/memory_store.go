package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryConnectionStore is a process-local ConnectionStore with the same
// write-once and monotonic semantics as the SQL store.
type MemoryConnectionStore struct {
	mu      sync.Mutex
	records map[string]ConnectionRecord
	now     func() time.Time
}

func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		records: map[string]ConnectionRecord{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryConnectionStore) Get(_ context.Context, identity string) (ConnectionRecord, error) {
	if s == nil {
		return ConnectionRecord{}, fmt.Errorf("core: connection store is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ConnectionRecord{}, fmt.Errorf("core: identity is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[identity]
	if !ok {
		return ConnectionRecord{}, ErrConnectionNotFound
	}
	return cloneConnectionRecord(record), nil
}

func (s *MemoryConnectionStore) SaveProfileKey(_ context.Context, in SaveProfileKeyInput) (ConnectionRecord, error) {
	if s == nil {
		return ConnectionRecord{}, fmt.Errorf("core: connection store is not configured")
	}
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		return ConnectionRecord{}, fmt.Errorf("core: identity is required")
	}
	key := strings.TrimSpace(in.ProfileKey)
	if key == "" {
		return ConnectionRecord{}, ErrProfileKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	record, ok := s.records[identity]
	if !ok {
		record = ConnectionRecord{
			ID:        uuid.NewString(),
			Identity:  identity,
			CreatedAt: now,
		}
	}
	if !record.HasProfileKey() {
		record.ProviderProfileKey = key
		record.ProviderRef = strings.TrimSpace(in.ProviderRef)
	}
	if email := strings.TrimSpace(in.Email); email != "" && record.Email == "" {
		record.Email = email
	}
	record.UpdatedAt = now
	s.records[identity] = record
	return cloneConnectionRecord(record), nil
}

func (s *MemoryConnectionStore) MarkConnected(_ context.Context, in MarkConnectedInput) (ConnectionRecord, error) {
	if s == nil {
		return ConnectionRecord{}, fmt.Errorf("core: connection store is not configured")
	}
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		return ConnectionRecord{}, fmt.Errorf("core: identity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	record, ok := s.records[identity]
	if !ok {
		record = ConnectionRecord{
			ID:        uuid.NewString(),
			Identity:  identity,
			CreatedAt: now,
		}
	}
	if !record.HasProfileKey() {
		record.ProviderProfileKey = strings.TrimSpace(in.ProfileKey)
	}
	if !record.HasProfileKey() {
		return ConnectionRecord{}, ErrProfileKeyRequired
	}
	connectedAt := in.ConnectedAt
	if connectedAt.IsZero() {
		connectedAt = now
	}
	record.ConnectedAt = &connectedAt
	if !in.CheckedAt.IsZero() {
		checkedAt := in.CheckedAt
		record.LastCheckedAt = &checkedAt
	}
	record.Connected = true
	record.ConnectionLabel = firstNonEmpty(in.Label, ConnectedLabel)
	record.UpdatedAt = now
	s.records[identity] = record
	return cloneConnectionRecord(record), nil
}

func (s *MemoryConnectionStore) ListPending(_ context.Context, limit int) ([]ConnectionRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("core: connection store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConnectionRecord, 0)
	for _, record := range s.records {
		if record.State() == LinkStatePending {
			out = append(out, cloneConnectionRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneConnectionRecord(record ConnectionRecord) ConnectionRecord {
	out := record
	if record.ConnectedAt != nil {
		value := *record.ConnectedAt
		out.ConnectedAt = &value
	}
	if record.LastCheckedAt != nil {
		value := *record.LastCheckedAt
		out.LastCheckedAt = &value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ ConnectionStore = (*MemoryConnectionStore)(nil)
