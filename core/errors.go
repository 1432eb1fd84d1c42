package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput              = "SERVICE_BAD_INPUT"
	ServiceErrorMissingIdentity       = "SERVICE_MISSING_IDENTITY"
	ServiceErrorMissingProfileKey     = "SERVICE_MISSING_PROFILE_KEY"
	ServiceErrorMissingContent        = "SERVICE_MISSING_CONTENT"
	ServiceErrorConnectionNotFound    = "SERVICE_CONNECTION_NOT_FOUND"
	ServiceErrorProviderUnavailable   = "SERVICE_PROVIDER_UNAVAILABLE"
	ServiceErrorSessionIssuanceFailed = "SERVICE_SESSION_ISSUANCE_FAILED"
	ServiceErrorPublishRejected       = "SERVICE_PUBLISH_REJECTED"
	ServiceErrorNotConnected          = "SERVICE_NOT_CONNECTED"
	ServiceErrorPersistenceFailed     = "SERVICE_PERSISTENCE_FAILED"
	ServiceErrorCallbackSignature     = "SERVICE_CALLBACK_SIGNATURE_INVALID"
	ServiceErrorRateLimited           = "SERVICE_RATE_LIMITED"
	ServiceErrorInternal              = "SERVICE_INTERNAL_ERROR"
)

func MissingIdentityError() *goerrors.Error {
	return newServiceError("identity is required", goerrors.CategoryBadInput, ServiceErrorMissingIdentity)
}

func MissingProfileKeyError() *goerrors.Error {
	return newServiceError("provider profile key is required", goerrors.CategoryBadInput, ServiceErrorMissingProfileKey)
}

func MissingContentError() *goerrors.Error {
	return newServiceError("post content is required", goerrors.CategoryBadInput, ServiceErrorMissingContent)
}

func NotConnectedError(identity string) *goerrors.Error {
	return newServiceError("Social accounts not connected", goerrors.CategoryBadInput, ServiceErrorNotConnected).
		WithMetadata(map[string]any{"identity": identity})
}

func ProviderUnavailableError(operation string, source error) *goerrors.Error {
	if throttled := rateLimited(source); throttled != nil {
		return throttled
	}
	return wrapServiceError(source, goerrors.CategoryExternal, ServiceErrorProviderUnavailable, "provider "+operation+" failed")
}

func SessionIssuanceError(source error) *goerrors.Error {
	if source == nil {
		source = errors.New("provider returned neither link nor token")
	}
	return wrapServiceError(source, goerrors.CategoryExternal, ServiceErrorSessionIssuanceFailed, "could not issue link session")
}

func PublishRejectedError(source error, details map[string]any) *goerrors.Error {
	if throttled := rateLimited(source); throttled != nil {
		return throttled
	}
	err := wrapServiceError(source, goerrors.CategoryOperation, ServiceErrorPublishRejected, "provider rejected the post")
	if len(details) > 0 {
		err = err.WithMetadata(details)
	}
	return err
}

func PersistenceError(source error) *goerrors.Error {
	return wrapServiceError(source, goerrors.CategoryInternal, ServiceErrorPersistenceFailed, "connection record could not be persisted")
}

// rateLimited returns source when it already reports provider throttling, so
// callers keep the 429 and retry hint instead of a generic provider failure.
func rateLimited(source error) *goerrors.Error {
	var richErr *goerrors.Error
	if !goerrors.As(source, &richErr) {
		return nil
	}
	if richErr.Category != goerrors.CategoryRateLimit && richErr.TextCode != ServiceErrorRateLimited {
		return nil
	}
	return ensureServiceErrorEnvelope(richErr)
}

// HasTextCode reports whether err carries the given service text code.
func HasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), strings.TrimSpace(textCode))
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrConnectionNotFound):
		return wrapServiceError(err, goerrors.CategoryNotFound, ServiceErrorConnectionNotFound, "connection record not found")
	case errors.Is(err, ErrProfileKeyRequired):
		return wrapServiceError(err, goerrors.CategoryBadInput, ServiceErrorMissingProfileKey, "provider profile key is required")
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "identity") && strings.Contains(msg, "required"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorMissingIdentity)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapServiceError(source error, category goerrors.Category, textCode string, message string) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	err.Source = source
	return ensureServiceErrorEnvelope(err)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category, err.TextCode)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorConnectionNotFound
	case goerrors.CategoryExternal:
		return ServiceErrorProviderUnavailable
	case goerrors.CategoryRateLimit:
		return ServiceErrorRateLimited
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category, textCode string) int {
	switch strings.TrimSpace(textCode) {
	case ServiceErrorPublishRejected:
		return http.StatusUnprocessableEntity
	case ServiceErrorCallbackSignature:
		return http.StatusUnauthorized
	}
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
