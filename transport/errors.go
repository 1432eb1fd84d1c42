package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-socialink/core"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// StatusError converts a non-2xx response into an error envelope. It returns
// nil for successful responses.
func StatusError(operation string, res core.TransportResponse) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	category := statusCategory(res.StatusCode)
	message := fmt.Sprintf("transport: %s returned status %d", strings.TrimSpace(operation), res.StatusCode)
	if detail := responseMessage(res.Body); detail != "" {
		message += ": " + detail
	}
	code := res.StatusCode
	if category == goerrors.CategoryExternal {
		code = http.StatusBadGateway
	}
	return transportError(message, category, code, map[string]any{
		"adapter":     KindREST,
		"operation":   strings.TrimSpace(operation),
		"status_code": res.StatusCode,
	})
}

func statusCategory(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusConflict:
		return goerrors.CategoryConflict
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status >= 400 && status < 500:
		return goerrors.CategoryBadInput
	default:
		return goerrors.CategoryExternal
	}
}

func responseMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	if msg, ok := payload.Error.(string); ok {
		return strings.TrimSpace(msg)
	}
	return ""
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return core.ServiceErrorConnectionNotFound
	case goerrors.CategoryRateLimit:
		return core.ServiceErrorRateLimited
	case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryExternal, goerrors.CategoryConflict:
		return core.ServiceErrorProviderUnavailable
	default:
		return core.ServiceErrorInternal
	}
}
