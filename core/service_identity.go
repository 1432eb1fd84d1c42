package core

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ResolveProfile maps an identity to exactly one provider profile key. The
// stored key wins, then an existing remote profile carrying the identity as its
// reference, and only then is a new profile created. Store failures never fail
// the call; they are reported through the result's Persistence outcome.
func (s *Service) ResolveProfile(ctx context.Context, req ResolveProfileRequest) (result ResolveProfileResult, err error) {
	startedAt := time.Now().UTC()
	identity := strings.TrimSpace(req.Identity)
	fields := map[string]any{"identity": identity}
	defer func() {
		fields["source"] = string(result.Source)
		fields["duplicate"] = result.Duplicate
		s.observeOperation(ctx, startedAt, "resolve_profile", err, fields)
	}()

	if identity == "" {
		err = MissingIdentityError()
		return ResolveProfileResult{}, err
	}
	result.Identity = identity

	record, found, lookupErr := s.lookupRecord(ctx, identity)
	if lookupErr != nil {
		result.Persistence = persistFailed(lookupErr)
		s.reportPersistence(ctx, "resolve_profile", result.Persistence, fields)
	}
	if found && record.HasProfileKey() {
		result.ProfileKey = record.ProviderProfileKey
		result.Source = ResolveSourceStore
		return result, nil
	}

	profile, source, err := s.locateOrCreateProfile(ctx, identity)
	if err != nil {
		return ResolveProfileResult{Identity: identity}, err
	}
	result.ProfileKey = profile.ProfileKey
	result.Source = source

	stored, saveErr := s.connectionStore.SaveProfileKey(ctx, SaveProfileKeyInput{
		Identity:    identity,
		Email:       req.Email,
		ProfileKey:  profile.ProfileKey,
		ProviderRef: firstNonEmpty(profile.Reference, identity),
	})
	if saveErr != nil {
		result.Persistence = persistFailed(saveErr)
		s.reportPersistence(ctx, "resolve_profile", result.Persistence, fields)
		return result, nil
	}
	result.Persistence = persisted()

	if stored.HasProfileKey() && stored.ProviderProfileKey != profile.ProfileKey {
		// A concurrent first call stored its key first; the stored key is final.
		result.Duplicate = true
		result.DroppedKey = profile.ProfileKey
		result.ProfileKey = stored.ProviderProfileKey
		s.logWarn(ctx, "duplicate provider profile detected", map[string]any{
			"identity":    identity,
			"kept_key":    stored.ProviderProfileKey,
			"dropped_key": profile.ProfileKey,
		})
	}
	return result, nil
}

func (s *Service) locateOrCreateProfile(ctx context.Context, identity string) (ProviderProfile, ResolveSource, error) {
	profile, found, err := s.findRemoteProfile(ctx, identity)
	if err != nil {
		return ProviderProfile{}, "", ProviderUnavailableError("profile lookup", err)
	}
	if found {
		return profile, ResolveSourceRemote, nil
	}

	gatewayCtx, cancel := s.gatewayContext(ctx)
	created, err := s.gateway.CreateProfile(gatewayCtx, CreateProfileRequest{
		Reference:      identity,
		Title:          identity,
		IdempotencyKey: identity,
	})
	cancel()
	if err != nil {
		if goerrors.Is(err, ErrProviderProfileExists) {
			if existing, ok, findErr := s.findRemoteProfile(ctx, identity); findErr == nil && ok {
				return existing, ResolveSourceRemote, nil
			}
		}
		return ProviderProfile{}, "", ProviderUnavailableError("profile creation", err)
	}
	if strings.TrimSpace(created.ProfileKey) == "" {
		return ProviderProfile{}, "", ProviderUnavailableError("profile creation", errors.New("provider returned an empty profile key"))
	}
	created.ProfileKey = strings.TrimSpace(created.ProfileKey)
	return created, ResolveSourceCreated, nil
}

func (s *Service) findRemoteProfile(ctx context.Context, identity string) (ProviderProfile, bool, error) {
	gatewayCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	profile, found, err := s.gateway.FindProfile(gatewayCtx, FindProfileRequest{Reference: identity})
	if err != nil {
		return ProviderProfile{}, false, err
	}
	if !found || strings.TrimSpace(profile.ProfileKey) == "" {
		return ProviderProfile{}, false, nil
	}
	profile.ProfileKey = strings.TrimSpace(profile.ProfileKey)
	return profile, true, nil
}
