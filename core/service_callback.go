package core

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// HandleCallback processes the provider's post-authorization redirect. It
// always yields a redirect destination; only a failed connected write is
// returned as an error, and even then the result still carries the redirect.
func (s *Service) HandleCallback(ctx context.Context, req CallbackRequest) (result CallbackResult, err error) {
	startedAt := time.Now().UTC()
	identity := strings.TrimSpace(req.Identity)
	fields := map[string]any{"identity": identity}
	defer func() {
		fields["outcome"] = string(result.Outcome)
		fields["reason"] = result.Reason
		s.observeOperation(ctx, startedAt, "handle_callback", err, fields)
	}()

	if identity == "" {
		return s.failedCallback("", CallbackReasonNoIdentity), nil
	}
	if s.callbackSigner != nil && !s.callbackSigner.Verify(identity, req.Signature) {
		return s.failedCallback(identity, CallbackReasonInvalidSignature), nil
	}
	if !strings.EqualFold(strings.TrimSpace(req.Status), "success") {
		return s.failedCallback(identity, CallbackReasonAuthorizationFailed), nil
	}

	profileKey := s.recoverProfileKey(ctx, identity, fields)
	if profileKey == "" {
		// Nothing ties this identity to a profile yet; a record without a
		// profile key must stay unconnected.
		return CallbackResult{
			Identity: identity,
			Outcome:  CallbackOutcomePending,
			Reason:   CallbackReasonPendingVerification,
			RedirectURL: s.redirectURL(s.config.Redirect.SuccessURL, map[string]string{
				"connected":           "false",
				CallbackIdentityParam: identity,
				"error":               CallbackReasonPendingVerification,
			}),
		}, nil
	}

	_, markErr := s.connectionStore.MarkConnected(ctx, MarkConnectedInput{
		Identity:    identity,
		ProfileKey:  profileKey,
		ConnectedAt: s.now(),
		Label:       ConnectedLabel,
	})
	if markErr != nil {
		result = CallbackResult{
			Identity:    identity,
			Outcome:     CallbackOutcomeConnected,
			Reason:      CallbackReasonPersistenceFailed,
			Persistence: persistFailed(markErr),
			RedirectURL: s.redirectURL(s.config.Redirect.SuccessURL, map[string]string{
				"connected":           "true",
				CallbackIdentityParam: identity,
				"error":               CallbackReasonPersistenceFailed,
			}),
		}
		s.reportPersistence(ctx, "handle_callback", result.Persistence, fields)
		if s.jobEnqueuer != nil {
			if enqueueErr := s.EnqueueReconcile(ctx, identity); enqueueErr != nil {
				s.logWarn(ctx, "reconcile enqueue failed", map[string]any{
					"identity": identity,
					"error":    enqueueErr.Error(),
				})
			}
		}
		err = PersistenceError(markErr)
		return result, err
	}

	return CallbackResult{
		Identity:    identity,
		Outcome:     CallbackOutcomeConnected,
		Persistence: persisted(),
		RedirectURL: s.redirectURL(s.config.Redirect.SuccessURL, map[string]string{
			"connected":           "true",
			CallbackIdentityParam: identity,
		}),
	}, nil
}

func (s *Service) failedCallback(identity string, reason string) CallbackResult {
	return CallbackResult{
		Identity: identity,
		Outcome:  CallbackOutcomeFailed,
		Reason:   reason,
		RedirectURL: s.redirectURL(s.config.Redirect.FailureURL, map[string]string{
			"connected": "false",
			"error":     reason,
		}),
	}
}

// recoverProfileKey finds the key for identity without ever creating a
// profile: the store first, then an exact remote match.
func (s *Service) recoverProfileKey(ctx context.Context, identity string, fields map[string]any) string {
	record, found, err := s.lookupRecord(ctx, identity)
	if err != nil {
		s.reportPersistence(ctx, "handle_callback", persistFailed(err), fields)
	}
	if found && record.HasProfileKey() {
		return record.ProviderProfileKey
	}
	profile, ok, err := s.findRemoteProfile(ctx, identity)
	if err != nil {
		s.logWarn(ctx, "profile recovery failed", map[string]any{
			"identity": identity,
			"error":    err.Error(),
		})
		return ""
	}
	if !ok {
		return ""
	}
	return profile.ProfileKey
}

func (s *Service) redirectURL(base string, params map[string]string) string {
	base = strings.TrimSpace(base)
	parsed, err := url.Parse(base)
	if err != nil {
		parsed = &url.URL{Path: base}
	}
	query := parsed.Query()
	for key, value := range params {
		if strings.TrimSpace(value) == "" {
			continue
		}
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
