package command

import (
	"strings"

	"github.com/goliatone/go-socialink/core"
)

const (
	TypeConnect          = "socialink.command.connect"
	TypeCompleteCallback = "socialink.command.callback.complete"
	TypeCheckConnection  = "socialink.command.connection.check"
	TypePublish          = "socialink.command.publish"
	TypeReconcilePending = "socialink.command.connection.reconcile"
)

type ConnectMessage struct {
	Request core.ConnectRequest
}

func (ConnectMessage) Type() string { return TypeConnect }

func (m ConnectMessage) Validate() error {
	if strings.TrimSpace(m.Request.Identity) == "" {
		return commandMissingIdentityError()
	}
	return nil
}

// CompleteCallbackMessage carries the provider redirect. Identity is not
// validated here because a callback without one still has to produce a
// redirect.
type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	return nil
}

type CheckConnectionMessage struct {
	Request core.CheckConnectionRequest
}

func (CheckConnectionMessage) Type() string { return TypeCheckConnection }

func (m CheckConnectionMessage) Validate() error {
	if strings.TrimSpace(m.Request.Identity) == "" {
		return commandMissingIdentityError()
	}
	return nil
}

type PublishMessage struct {
	Request core.PublishRequest
}

func (PublishMessage) Type() string { return TypePublish }

func (m PublishMessage) Validate() error {
	if strings.TrimSpace(m.Request.Identity) == "" {
		return commandMissingIdentityError()
	}
	if strings.TrimSpace(m.Request.Content) == "" {
		return commandValidationError("content", "content is required")
	}
	return nil
}

type ReconcilePendingMessage struct {
	Limit int
}

func (ReconcilePendingMessage) Type() string { return TypeReconcilePending }

func (m ReconcilePendingMessage) Validate() error {
	if m.Limit < 0 {
		return commandValidationError("limit", "limit must be >= 0")
	}
	return nil
}
