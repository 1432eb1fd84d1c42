package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type connectionRecord struct {
	bun.BaseModel `bun:"table:socialink_connections,alias:slc"`

	ID                 string     `bun:"id,pk"`
	Identity           string     `bun:"identity,notnull"`
	Email              string     `bun:"email,notnull"`
	ProviderProfileKey *string    `bun:"provider_profile_key"`
	ProviderRef        string     `bun:"provider_ref,notnull"`
	Connected          bool       `bun:"connected,notnull"`
	ConnectedAt        *time.Time `bun:"connected_at,nullzero"`
	ConnectionLabel    string     `bun:"connection_label,notnull"`
	LastCheckedAt      *time.Time `bun:"last_checked_at,nullzero"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
