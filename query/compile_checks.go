package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-socialink/core"
)

var (
	_ gocmd.Querier[GetConnectionMessage, core.ConnectionRecord]            = (*GetConnectionQuery)(nil)
	_ gocmd.Querier[ListPendingConnectionsMessage, []core.ConnectionRecord] = (*ListPendingConnectionsQuery)(nil)

	_ ConnectionReader        = (*core.Service)(nil)
	_ PendingConnectionReader = (*core.Service)(nil)
)
