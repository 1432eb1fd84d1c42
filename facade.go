package socialink

import (
	"context"
	"fmt"

	socialinkcommand "github.com/goliatone/go-socialink/command"
	"github.com/goliatone/go-socialink/core"
	socialinkquery "github.com/goliatone/go-socialink/query"
)

type CommandQueryService interface {
	socialinkcommand.MutatingService
	socialinkcommand.ReconcileService
	socialinkquery.ConnectionReader
}

type Commands struct {
	Connect          *socialinkcommand.ConnectCommand
	CompleteCallback *socialinkcommand.CompleteCallbackCommand
	CheckConnection  *socialinkcommand.CheckConnectionCommand
	Publish          *socialinkcommand.PublishCommand
	ReconcilePending *socialinkcommand.ReconcilePendingCommand
}

type Queries struct {
	GetConnection          *socialinkquery.GetConnectionQuery
	ListPendingConnections *socialinkquery.ListPendingConnectionsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	pendingReader socialinkquery.PendingConnectionReader
}

func WithPendingReader(reader socialinkquery.PendingConnectionReader) FacadeOption {
	return func(options *facadeOptions) {
		options.pendingReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("socialink: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.pendingReader
	if reader == nil {
		reader = resolvePendingReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Connect:          socialinkcommand.NewConnectCommand(service),
		CompleteCallback: socialinkcommand.NewCompleteCallbackCommand(service),
		CheckConnection:  socialinkcommand.NewCheckConnectionCommand(service),
		Publish:          socialinkcommand.NewPublishCommand(service),
		ReconcilePending: socialinkcommand.NewReconcilePendingCommand(service),
	}
	facade.queries = Queries{
		GetConnection:          socialinkquery.NewGetConnectionQuery(service),
		ListPendingConnections: socialinkquery.NewListPendingConnectionsQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolvePendingReader prefers the service itself and falls back to the
// connection store exposed through its dependencies.
func resolvePendingReader(service CommandQueryService) socialinkquery.PendingConnectionReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(socialinkquery.PendingConnectionReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	store := provider.Dependencies().ConnectionStore
	if store == nil {
		return nil
	}
	return storePendingReader{store: store}
}

type storePendingReader struct {
	store core.ConnectionStore
}

func (r storePendingReader) ListPendingConnections(ctx context.Context, limit int) ([]core.ConnectionRecord, error) {
	return r.store.ListPending(ctx, limit)
}
