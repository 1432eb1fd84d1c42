package sqlstore

import "github.com/goliatone/go-socialink/core"

var (
	_ core.ConnectionStore        = (*ConnectionStore)(nil)
	_ core.ConnectionStore        = (*CachedConnectionStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
