package devkit

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-socialink/core"
)

func TestFakeTransportAdapter_ScriptsAndCapturesRequests(t *testing.T) {
	adapter := NewFakeTransportAdapter("rest",
		TransportScript{Response: core.TransportResponse{StatusCode: 429}},
		JSONScript(http.StatusOK, map[string]string{"status": "success"}),
	)

	first, err := adapter.Do(context.Background(), core.TransportRequest{
		Method: "GET",
		URL:    "https://api.example.test/user",
	})
	if err != nil {
		t.Fatalf("first fake call: %v", err)
	}
	if first.StatusCode != 429 {
		t.Fatalf("expected first scripted status 429, got %d", first.StatusCode)
	}

	second, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  "POST",
		URL:     "https://api.example.test/post",
		Headers: map[string]string{"Profile-Key": "pk_1"},
	})
	if err != nil {
		t.Fatalf("second fake call: %v", err)
	}
	if second.StatusCode != 200 || string(second.Body) != `{"status":"success"}` {
		t.Fatalf("unexpected second response %d %s", second.StatusCode, second.Body)
	}

	requests := adapter.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected two captured requests, got %d", len(requests))
	}
	last, ok := adapter.LastRequest()
	if !ok || last.Headers["Profile-Key"] != "pk_1" {
		t.Fatalf("expected last request with profile key, got %#v", last)
	}
}

func TestValidateTransportAdapterConformance(t *testing.T) {
	if err := ValidateTransportAdapterConformance(context.Background(), nil, core.TransportRequest{}); err == nil {
		t.Fatalf("expected error for nil adapter")
	}
	adapter := NewFakeTransportAdapter("rest")
	if err := ValidateTransportAdapterConformance(context.Background(), adapter, core.TransportRequest{URL: "https://api.example.test"}); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestValidateConnectionStoreConformance_MemoryStore(t *testing.T) {
	store := core.NewMemoryConnectionStore()
	if err := ValidateConnectionStoreConformance(context.Background(), store, "client-conformance"); err != nil {
		t.Fatalf("memory store conformance: %v", err)
	}
}
