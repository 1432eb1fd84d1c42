package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-socialink/core"
)

func commandDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal)
}

func commandValidationError(field string, message string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func commandMissingIdentityError() error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   "identity",
		Message: "identity is required",
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorMissingIdentity).
		WithSeverity(goerrors.SeverityError)
}
