package core

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name     string
		err      *goerrors.Error
		textCode string
		status   int
	}{
		{"missing identity", MissingIdentityError(), ServiceErrorMissingIdentity, http.StatusBadRequest},
		{"not connected", NotConnectedError("u1"), ServiceErrorNotConnected, http.StatusBadRequest},
		{"provider unavailable", ProviderUnavailableError("lookup", fmt.Errorf("dial tcp")), ServiceErrorProviderUnavailable, http.StatusBadGateway},
		{"session issuance", SessionIssuanceError(nil), ServiceErrorSessionIssuanceFailed, http.StatusBadGateway},
		{"publish rejected", PublishRejectedError(fmt.Errorf("bad media"), nil), ServiceErrorPublishRejected, http.StatusUnprocessableEntity},
		{"persistence", PersistenceError(errStoreDown), ServiceErrorPersistenceFailed, http.StatusInternalServerError},
		{"throttled lookup", ProviderUnavailableError("lookup", goerrors.New("slow down", goerrors.CategoryRateLimit)), ServiceErrorRateLimited, http.StatusTooManyRequests},
		{"throttled publish", PublishRejectedError(goerrors.New("slow down", goerrors.CategoryRateLimit), map[string]any{"status_code": 429}), ServiceErrorRateLimited, http.StatusTooManyRequests},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.TextCode != tc.textCode {
				t.Fatalf("expected text code %s, got %s", tc.textCode, tc.err.TextCode)
			}
			if tc.err.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, tc.err.Code)
			}
		})
	}
}

func TestWrappedErrorsKeepSource(t *testing.T) {
	err := PersistenceError(errStoreDown)
	if !goerrors.Is(err, errStoreDown) {
		t.Fatalf("expected source to be reachable through unwrap")
	}
}

func TestServiceErrorMapperNormalizesPlainErrors(t *testing.T) {
	mapped := serviceErrorMapper(ErrConnectionNotFound)
	if mapped.TextCode != ServiceErrorConnectionNotFound || mapped.Code != http.StatusNotFound {
		t.Fatalf("unexpected mapping %+v", mapped)
	}

	mapped = serviceErrorMapper(fmt.Errorf("core: callback url is required"))
	if mapped.TextCode != ServiceErrorBadInput || mapped.Code != http.StatusBadRequest {
		t.Fatalf("unexpected mapping %+v", mapped)
	}

	mapped = serviceErrorMapper(fmt.Errorf("core: identity is required"))
	if mapped.TextCode != ServiceErrorMissingIdentity {
		t.Fatalf("unexpected mapping %+v", mapped)
	}

	mapped = serviceErrorMapper(fmt.Errorf("something odd"))
	if mapped.TextCode == "" || mapped.Code == 0 {
		t.Fatalf("expected envelope defaults, got %+v", mapped)
	}
}
