package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-socialink/core"
)

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorProviderUnavailable {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorProviderUnavailable, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_NilClientReturnsRichError(t *testing.T) {
	adapter := &RESTAdapter{}
	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://example.com"})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorInternal, rich.TextCode)
	}
}

func TestStatusError_MapsProviderStatus(t *testing.T) {
	cases := []struct {
		status   int
		category goerrors.Category
		code     int
	}{
		{status: http.StatusUnauthorized, category: goerrors.CategoryAuth, code: http.StatusUnauthorized},
		{status: http.StatusTooManyRequests, category: goerrors.CategoryRateLimit, code: http.StatusTooManyRequests},
		{status: http.StatusBadRequest, category: goerrors.CategoryBadInput, code: http.StatusBadRequest},
		{status: http.StatusServiceUnavailable, category: goerrors.CategoryExternal, code: http.StatusBadGateway},
	}
	for _, tc := range cases {
		err := StatusError("post", core.TransportResponse{
			StatusCode: tc.status,
			Body:       []byte(`{"status":"error","message":"profile key invalid"}`),
		})
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("status %d: expected go-errors envelope, got %T", tc.status, err)
		}
		if rich.Category != tc.category {
			t.Fatalf("status %d: expected category %q, got %q", tc.status, tc.category, rich.Category)
		}
		if rich.Code != tc.code {
			t.Fatalf("status %d: expected code %d, got %d", tc.status, tc.code, rich.Code)
		}
		if rich.Metadata["status_code"] != tc.status {
			t.Fatalf("status %d: expected status metadata, got %#v", tc.status, rich.Metadata)
		}
	}

	if err := StatusError("post", core.TransportResponse{StatusCode: http.StatusOK}); err != nil {
		t.Fatalf("expected nil error for success, got %v", err)
	}
}
