package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-socialink/core"
	"github.com/google/uuid"
)

func newConnectionRecord(identity string, email string, now time.Time) *connectionRecord {
	return &connectionRecord{
		ID:        uuid.NewString(),
		Identity:  identity,
		Email:     strings.TrimSpace(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *connectionRecord) profileKey() string {
	if r == nil || r.ProviderProfileKey == nil {
		return ""
	}
	return strings.TrimSpace(*r.ProviderProfileKey)
}

func (r *connectionRecord) toDomain() core.ConnectionRecord {
	if r == nil {
		return core.ConnectionRecord{}
	}
	return core.ConnectionRecord{
		ID:                 r.ID,
		Identity:           r.Identity,
		Email:              r.Email,
		ProviderProfileKey: r.profileKey(),
		ProviderRef:        r.ProviderRef,
		Connected:          r.Connected,
		ConnectedAt:        cloneTimePointer(r.ConnectedAt),
		ConnectionLabel:    r.ConnectionLabel,
		LastCheckedAt:      cloneTimePointer(r.LastCheckedAt),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func stringPointer(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
