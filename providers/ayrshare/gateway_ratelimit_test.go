package ayrshare_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-socialink/core"
	"github.com/goliatone/go-socialink/providers/ayrshare"
	"github.com/goliatone/go-socialink/providers/devkit"
	"github.com/goliatone/go-socialink/ratelimit"
	"github.com/goliatone/go-socialink/transport"
)

func TestGateway_ThrottledProfileShortCircuits(t *testing.T) {
	throttled := devkit.JSONScript(http.StatusTooManyRequests, map[string]any{
		"status":  "error",
		"message": "Too many requests",
	})
	throttled.Response.Headers = map[string]string{"Retry-After": "30"}
	fake := devkit.NewFakeTransportAdapter(transport.KindREST,
		throttled,
		devkit.JSONScript(http.StatusOK, map[string]any{"status": "success", "id": "post_1"}),
	)

	now := time.Unix(1_700_000_000, 0).UTC()
	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	policy.Now = func() time.Time { return now }
	gateway, err := ayrshare.New(ayrshare.Config{APIKey: "api-key", Transport: fake, Limiter: policy})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	payload := core.PublishPayload{ProfileKey: "pk_1", Content: "hello", Platforms: []string{"facebook"}}
	if _, err := gateway.Publish(context.Background(), payload); !core.HasTextCode(err, core.ServiceErrorRateLimited) {
		t.Fatalf("expected provider 429 to surface as rate limited, got %v", err)
	}

	if _, err := gateway.Publish(context.Background(), payload); !core.HasTextCode(err, core.ServiceErrorRateLimited) {
		t.Fatalf("expected throttled profile to be rejected locally, got %v", err)
	}
	if got := len(fake.Requests()); got != 1 {
		t.Fatalf("expected a single provider call while throttled, got %d", got)
	}

	other := payload
	other.ProfileKey = "pk_2"
	if _, err := gateway.Publish(context.Background(), other); err != nil {
		t.Fatalf("expected other profile to publish, got %v", err)
	}

	now = now.Add(31 * time.Second)
	if _, err := gateway.Publish(context.Background(), payload); err != nil {
		t.Fatalf("expected publish to resume after the window, got %v", err)
	}
	if got := len(fake.Requests()); got != 3 {
		t.Fatalf("expected the call to reach the provider after the window, got %d requests", got)
	}
}
