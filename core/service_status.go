package core

import (
	"context"
	"strings"
	"time"
)

// CheckConnection reconciles the stored state against the provider's live
// account list. Only a non-empty list writes to the store, and only toward
// connected. Provider failures are reported on the status, not as errors.
// A caller-supplied key is persisted only when the provider lists it as the
// identity's own profile.
func (s *Service) CheckConnection(ctx context.Context, req CheckConnectionRequest) (status ConnectionStatus, err error) {
	startedAt := time.Now().UTC()
	identity := strings.TrimSpace(req.Identity)
	fields := map[string]any{"identity": identity}
	defer func() {
		fields["connected"] = status.Connected
		fields["accounts"] = len(status.Accounts)
		s.observeOperation(ctx, startedAt, "check_connection", err, fields)
	}()

	if identity == "" {
		err = MissingIdentityError()
		return ConnectionStatus{}, err
	}

	record, found, lookupErr := s.lookupRecord(ctx, identity)
	profileKey := strings.TrimSpace(req.ProfileKey)
	verified := false
	if found && record.HasProfileKey() {
		// The stored key is authoritative once written.
		profileKey = record.ProviderProfileKey
		verified = true
	}
	if profileKey == "" {
		if lookupErr != nil {
			err = PersistenceError(lookupErr)
			return ConnectionStatus{}, err
		}
		err = MissingProfileKeyError()
		return ConnectionStatus{}, err
	}
	status = ConnectionStatus{
		Identity:    identity,
		ProfileKey:  profileKey,
		ConnectedAt: record.ConnectedAt,
	}

	gatewayCtx, cancel := s.gatewayContext(ctx)
	accounts, gatewayErr := s.gateway.GetActiveAccounts(gatewayCtx, profileKey)
	cancel()

	if gatewayErr != nil {
		status.ProviderError = ProviderUnavailableError("active accounts lookup", gatewayErr)
		fields["provider_error"] = gatewayErr.Error()
		return status, nil
	}
	accounts = normalizePlatforms(accounts)
	if len(accounts) == 0 {
		return status, nil
	}

	status.Connected = true
	status.Accounts = accounts
	if !verified {
		verified = s.confirmSuppliedKey(ctx, identity, profileKey)
		fields["key_verified"] = verified
		if !verified {
			// An unconfirmed caller key is reported but never bound to the identity.
			return status, nil
		}
	}
	checkedAt := s.now()
	updated, markErr := s.connectionStore.MarkConnected(ctx, MarkConnectedInput{
		Identity:    identity,
		ProfileKey:  profileKey,
		ConnectedAt: checkedAt,
		CheckedAt:   checkedAt,
		Label:       ConnectedLabel,
	})
	if markErr != nil {
		status.Persistence = persistFailed(markErr)
		s.reportPersistence(ctx, "check_connection", status.Persistence, fields)
		return status, nil
	}
	status.Persistence = persisted()
	status.ConnectedAt = updated.ConnectedAt
	return status, nil
}

// confirmSuppliedKey reports whether the provider's profile for identity
// carries exactly profileKey.
func (s *Service) confirmSuppliedKey(ctx context.Context, identity, profileKey string) bool {
	profile, found, err := s.findRemoteProfile(ctx, identity)
	if err != nil {
		s.logWarn(ctx, "supplied profile key not verified", map[string]any{
			"identity": identity,
			"error":    err.Error(),
		})
		return false
	}
	return found && profile.ProfileKey == profileKey
}
