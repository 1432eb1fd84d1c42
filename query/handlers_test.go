package query

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-socialink/core"
)

type stubConnectionReader struct {
	records map[string]core.ConnectionRecord
	pending []core.ConnectionRecord
	limit   int
}

func (s *stubConnectionReader) GetConnection(_ context.Context, identity string) (core.ConnectionRecord, error) {
	record, ok := s.records[identity]
	if !ok {
		return core.ConnectionRecord{}, core.ErrConnectionNotFound
	}
	return record, nil
}

func (s *stubConnectionReader) ListPendingConnections(_ context.Context, limit int) ([]core.ConnectionRecord, error) {
	s.limit = limit
	return s.pending, nil
}

func TestGetConnectionQuery_ReturnsRecord(t *testing.T) {
	reader := &stubConnectionReader{records: map[string]core.ConnectionRecord{
		"client-1": {Identity: "client-1", ProviderProfileKey: "pk_1", Connected: true},
	}}

	record, err := NewGetConnectionQuery(reader).Query(context.Background(), GetConnectionMessage{Identity: "client-1"})
	if err != nil {
		t.Fatalf("query connection: %v", err)
	}
	if record.State() != core.LinkStateConnected {
		t.Fatalf("expected connected state, got %q", record.State())
	}
}

func TestGetConnectionQuery_PropagatesNotFound(t *testing.T) {
	reader := &stubConnectionReader{records: map[string]core.ConnectionRecord{}}
	_, err := NewGetConnectionQuery(reader).Query(context.Background(), GetConnectionMessage{Identity: "missing"})
	if !errors.Is(err, core.ErrConnectionNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListPendingConnectionsQuery_PassesLimit(t *testing.T) {
	reader := &stubConnectionReader{pending: []core.ConnectionRecord{
		{Identity: "client-1", ProviderProfileKey: "pk_1"},
		{Identity: "client-2", ProviderProfileKey: "pk_2"},
	}}

	records, err := NewListPendingConnectionsQuery(reader).Query(context.Background(), ListPendingConnectionsMessage{Limit: 10})
	if err != nil {
		t.Fatalf("query pending: %v", err)
	}
	if len(records) != 2 || reader.limit != 10 {
		t.Fatalf("unexpected pending result %d records with limit %d", len(records), reader.limit)
	}
	for _, record := range records {
		if record.State() != core.LinkStatePending {
			t.Fatalf("expected pending state, got %q", record.State())
		}
	}
}
