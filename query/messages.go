package query

import (
	"strings"
)

const (
	TypeGetConnection          = "socialink.query.connection.get"
	TypeListPendingConnections = "socialink.query.connection.pending"
)

type GetConnectionMessage struct {
	Identity string
}

func (GetConnectionMessage) Type() string { return TypeGetConnection }

func (m GetConnectionMessage) Validate() error {
	if strings.TrimSpace(m.Identity) == "" {
		return queryValidationError("identity", "identity is required")
	}
	return nil
}

type ListPendingConnectionsMessage struct {
	Limit int
}

func (ListPendingConnectionsMessage) Type() string { return TypeListPendingConnections }

func (m ListPendingConnectionsMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
