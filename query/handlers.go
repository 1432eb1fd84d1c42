package query

import (
	"context"

	"github.com/goliatone/go-socialink/core"
)

type ConnectionReader interface {
	GetConnection(ctx context.Context, identity string) (core.ConnectionRecord, error)
}

type PendingConnectionReader interface {
	ListPendingConnections(ctx context.Context, limit int) ([]core.ConnectionRecord, error)
}

type GetConnectionQuery struct {
	reader ConnectionReader
}

func NewGetConnectionQuery(reader ConnectionReader) *GetConnectionQuery {
	return &GetConnectionQuery{reader: reader}
}

func (q *GetConnectionQuery) Query(ctx context.Context, msg GetConnectionMessage) (core.ConnectionRecord, error) {
	if q == nil || q.reader == nil {
		return core.ConnectionRecord{}, queryDependencyError("query: connection reader is nil")
	}
	if err := msg.Validate(); err != nil {
		return core.ConnectionRecord{}, err
	}
	return q.reader.GetConnection(ctx, msg.Identity)
}

type ListPendingConnectionsQuery struct {
	reader PendingConnectionReader
}

func NewListPendingConnectionsQuery(reader PendingConnectionReader) *ListPendingConnectionsQuery {
	return &ListPendingConnectionsQuery{reader: reader}
}

func (q *ListPendingConnectionsQuery) Query(
	ctx context.Context,
	msg ListPendingConnectionsMessage,
) ([]core.ConnectionRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: pending connection reader is nil")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListPendingConnections(ctx, msg.Limit)
}
