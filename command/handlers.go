package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-socialink/core"
)

type MutatingService interface {
	Connect(ctx context.Context, req core.ConnectRequest) (core.ConnectResult, error)
	HandleCallback(ctx context.Context, req core.CallbackRequest) (core.CallbackResult, error)
	CheckConnection(ctx context.Context, req core.CheckConnectionRequest) (core.ConnectionStatus, error)
	Publish(ctx context.Context, req core.PublishRequest) (core.PublishResult, error)
}

type ReconcileService interface {
	ReconcilePending(ctx context.Context, limit int) (core.ReconcileResult, error)
}

type ConnectCommand struct {
	service MutatingService
}

func NewConnectCommand(service MutatingService) *ConnectCommand {
	return &ConnectCommand{service: service}
}

func (c *ConnectCommand) Execute(ctx context.Context, msg ConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.Connect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// CompleteCallbackCommand stores the callback result even when the service
// returns an error, so the caller can still redirect.
type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.HandleCallback(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

type CheckConnectionCommand struct {
	service MutatingService
}

func NewCheckConnectionCommand(service MutatingService) *CheckConnectionCommand {
	return &CheckConnectionCommand{service: service}
}

func (c *CheckConnectionCommand) Execute(ctx context.Context, msg CheckConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection check service is required")
	}
	out, err := c.service.CheckConnection(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PublishCommand struct {
	service MutatingService
}

func NewPublishCommand(service MutatingService) *PublishCommand {
	return &PublishCommand{service: service}
}

func (c *PublishCommand) Execute(ctx context.Context, msg PublishMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: publish service is required")
	}
	out, err := c.service.Publish(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReconcilePendingCommand struct {
	service ReconcileService
}

func NewReconcilePendingCommand(service ReconcileService) *ReconcilePendingCommand {
	return &ReconcilePendingCommand{service: service}
}

func (c *ReconcilePendingCommand) Execute(ctx context.Context, msg ReconcilePendingMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reconcile service is required")
	}
	out, err := c.service.ReconcilePending(ctx, msg.Limit)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
