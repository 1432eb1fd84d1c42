package devkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-socialink/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateConnectionStoreConformance drives a store through the link
// lifecycle for identity and checks the write-once key and first-connection
// timestamp rules. The identity must not exist in the store yet.
func ValidateConnectionStoreConformance(
	ctx context.Context,
	store core.ConnectionStore,
	identity string,
) error {
	if store == nil {
		return fmt.Errorf("devkit: connection store is required")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return fmt.Errorf("devkit: identity is required")
	}

	if _, err := store.Get(ctx, identity); !errors.Is(err, core.ErrConnectionNotFound) {
		return fmt.Errorf("devkit: expected ErrConnectionNotFound for new identity, got %v", err)
	}

	first, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{
		Identity:   identity,
		ProfileKey: identity + "-key-1",
	})
	if err != nil {
		return fmt.Errorf("devkit: save first key: %w", err)
	}
	if first.State() != core.LinkStatePending {
		return fmt.Errorf("devkit: expected pending state after first save, got %q", first.State())
	}

	second, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{
		Identity:   identity,
		ProfileKey: identity + "-key-2",
	})
	if err != nil {
		return fmt.Errorf("devkit: save second key: %w", err)
	}
	if second.ProviderProfileKey != first.ProviderProfileKey {
		return fmt.Errorf("devkit: stored key changed from %q to %q", first.ProviderProfileKey, second.ProviderProfileKey)
	}

	pending, err := store.ListPending(ctx, 0)
	if err != nil {
		return fmt.Errorf("devkit: list pending: %w", err)
	}
	if !containsIdentity(pending, identity) {
		return fmt.Errorf("devkit: expected %q in pending list", identity)
	}

	firstAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if _, err := store.MarkConnected(ctx, core.MarkConnectedInput{Identity: identity, ConnectedAt: firstAt}); err != nil {
		return fmt.Errorf("devkit: mark connected: %w", err)
	}
	again, err := store.MarkConnected(ctx, core.MarkConnectedInput{Identity: identity, ConnectedAt: firstAt.Add(time.Hour)})
	if err != nil {
		return fmt.Errorf("devkit: mark connected again: %w", err)
	}
	if again.ConnectedAt == nil || !again.ConnectedAt.Equal(firstAt.Add(time.Hour)) {
		return fmt.Errorf("devkit: expected connected_at to be refreshed to %v, got %v", firstAt.Add(time.Hour), again.ConnectedAt)
	}
	if again.State() != core.LinkStateConnected {
		return fmt.Errorf("devkit: expected connected state, got %q", again.State())
	}

	pending, err = store.ListPending(ctx, 0)
	if err != nil {
		return fmt.Errorf("devkit: list pending after connect: %w", err)
	}
	if containsIdentity(pending, identity) {
		return fmt.Errorf("devkit: connected identity %q still listed as pending", identity)
	}
	return nil
}

func containsIdentity(records []core.ConnectionRecord, identity string) bool {
	for _, record := range records {
		if record.Identity == identity {
			return true
		}
	}
	return false
}
