package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-socialink/core"
)

func TestConnectMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ConnectMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorMissingIdentity {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorMissingIdentity, rich.TextCode)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 || validation[0].Field != "identity" {
		t.Fatalf("expected identity validation field, got %#v", validation)
	}
}

func TestPublishMessage_ValidateRequiresContent(t *testing.T) {
	err := (PublishMessage{Request: core.PublishRequest{Identity: "client-1"}}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 || validation[0].Field != "content" {
		t.Fatalf("expected content validation field, got %#v", validation)
	}
}

func TestConnectCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *ConnectCommand
	err := cmd.Execute(context.Background(), ConnectMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
