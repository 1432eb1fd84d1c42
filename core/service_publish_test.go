package core

import (
	"context"
	"fmt"
	"testing"
)

func connectedService(t *testing.T, gateway *stubGateway) *Service {
	t.Helper()
	store := NewMemoryConnectionStore()
	seedPending(t, store, "u1", "pk_u1")
	if _, err := store.MarkConnected(context.Background(), MarkConnectedInput{Identity: "u1"}); err != nil {
		t.Fatalf("mark connected: %v", err)
	}
	return newTestService(t, store, gateway)
}

func TestPublishRequiresConnection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConnectionStore()
	seedPending(t, store, "pending", "pk_pending")
	gateway := newStubGateway()
	svc := newTestService(t, store, gateway)

	for _, identity := range []string{"unknown", "pending"} {
		_, err := svc.Publish(ctx, PublishRequest{Identity: identity, Content: "hello"})
		if !HasTextCode(err, ServiceErrorNotConnected) {
			t.Fatalf("%s: expected not connected, got %v", identity, err)
		}
	}
	if gateway.publishCalls != 0 {
		t.Fatalf("expected no provider call, got %d", gateway.publishCalls)
	}
}

func TestPublishDefaultsPlatforms(t *testing.T) {
	gateway := newStubGateway()
	svc := connectedService(t, gateway)

	result, err := svc.Publish(context.Background(), PublishRequest{Identity: "u1", Content: "hello"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.PostID != "post_1" || len(result.Posts) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	got := gateway.lastPublish.Platforms
	if len(got) != 2 || got[0] != "facebook" || got[1] != "instagram" {
		t.Fatalf("expected default platforms, got %v", got)
	}
	if gateway.lastPublish.ProfileKey != "pk_u1" {
		t.Fatalf("expected stored profile key, got %q", gateway.lastPublish.ProfileKey)
	}
}

func TestPublishUsesRequestedPlatforms(t *testing.T) {
	gateway := newStubGateway()
	svc := connectedService(t, gateway)

	_, err := svc.Publish(context.Background(), PublishRequest{
		Identity:  "u1",
		Content:   "hello",
		Platforms: []string{"LinkedIn", "linkedin", " twitter "},
		MediaURLs: []string{"https://cdn.example.com/a.png"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := gateway.lastPublish.Platforms
	if len(got) != 2 || got[0] != "linkedin" || got[1] != "twitter" {
		t.Fatalf("expected normalized platforms, got %v", got)
	}
	if len(gateway.lastPublish.MediaURLs) != 1 {
		t.Fatalf("expected media urls to pass through")
	}
}

func TestPublishRejections(t *testing.T) {
	t.Run("gateway error", func(t *testing.T) {
		gateway := newStubGateway()
		gateway.publishErr = fmt.Errorf("duplicate post")
		svc := connectedService(t, gateway)

		_, err := svc.Publish(context.Background(), PublishRequest{Identity: "u1", Content: "hello"})
		if !HasTextCode(err, ServiceErrorPublishRejected) {
			t.Fatalf("expected publish rejected, got %v", err)
		}
	})

	t.Run("non success status", func(t *testing.T) {
		gateway := newStubGateway()
		gateway.publishResult = ProviderPublishResult{Status: "error", Errors: []string{"instagram requires media"}}
		svc := connectedService(t, gateway)

		_, err := svc.Publish(context.Background(), PublishRequest{Identity: "u1", Content: "hello"})
		if !HasTextCode(err, ServiceErrorPublishRejected) {
			t.Fatalf("expected publish rejected, got %v", err)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		gateway := newStubGateway()
		svc := connectedService(t, gateway)

		_, err := svc.Publish(context.Background(), PublishRequest{Identity: "u1", Content: "  "})
		if !HasTextCode(err, ServiceErrorMissingContent) {
			t.Fatalf("expected missing content, got %v", err)
		}
		if gateway.publishCalls != 0 {
			t.Fatalf("expected no provider call")
		}
	})
}
