package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	CallbackIdentityParam  = "identity"
	CallbackSignatureParam = "sig"
	CallbackStatusParam    = "status"
)

// IssueLink asks the provider for a single sign-on session bound to the
// profile key. When the provider returns only a token, the link is built from
// the configured SSO base URL and the domain.
func (s *Service) IssueLink(ctx context.Context, req IssueLinkRequest) (session LinkSession, err error) {
	startedAt := time.Now().UTC()
	identity := strings.TrimSpace(req.Identity)
	profileKey := strings.TrimSpace(req.ProfileKey)
	fields := map[string]any{"identity": identity}
	defer func() {
		fields["constructed"] = session.Constructed
		s.observeOperation(ctx, startedAt, "issue_link", err, fields)
	}()

	if identity == "" {
		err = MissingIdentityError()
		return LinkSession{}, err
	}
	if profileKey == "" {
		err = MissingProfileKeyError()
		return LinkSession{}, err
	}

	redirectURL, err := s.callbackURL(identity)
	if err != nil {
		err = s.mapError(err)
		return LinkSession{}, err
	}

	gatewayCtx, cancel := s.gatewayContext(ctx)
	grant, err := s.gateway.IssueSession(gatewayCtx, IssueSessionRequest{
		ProfileKey:  profileKey,
		RedirectURL: redirectURL,
	})
	cancel()
	if err != nil {
		err = SessionIssuanceError(err)
		return LinkSession{}, err
	}

	link, constructed, err := s.linkFromGrant(grant)
	if err != nil {
		err = SessionIssuanceError(err)
		return LinkSession{}, err
	}
	return LinkSession{
		Identity:    identity,
		ProfileKey:  profileKey,
		URL:         link,
		Constructed: constructed,
		ExpiresAt:   grant.ExpiresAt,
	}, nil
}

// Connect resolves the identity's profile and issues an authorization link
// for it.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (result ConnectResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"identity": strings.TrimSpace(req.Identity)}
	defer func() {
		fields["source"] = string(result.Source)
		s.observeOperation(ctx, startedAt, "connect", err, fields)
	}()

	resolved, err := s.ResolveProfile(ctx, ResolveProfileRequest{
		Identity: req.Identity,
		Email:    req.Email,
	})
	if err != nil {
		return ConnectResult{}, err
	}
	result = ConnectResult{
		Identity:    resolved.Identity,
		ProfileKey:  resolved.ProfileKey,
		Source:      resolved.Source,
		Persistence: resolved.Persistence,
	}

	session, err := s.IssueLink(ctx, IssueLinkRequest{
		Identity:   resolved.Identity,
		ProfileKey: resolved.ProfileKey,
	})
	if err != nil {
		return result, err
	}
	result.LinkURL = session.URL
	result.ExpiresAt = session.ExpiresAt
	return result, nil
}

func (s *Service) callbackURL(identity string) (string, error) {
	raw := strings.TrimSpace(s.config.Callback.URL)
	if raw == "" {
		return "", fmt.Errorf("core: callback url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("core: callback url is invalid: %w", err)
	}
	query := parsed.Query()
	query.Set(CallbackIdentityParam, identity)
	if s.callbackSigner != nil {
		if signature := s.callbackSigner.Sign(identity); signature != "" {
			query.Set(CallbackSignatureParam, signature)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (s *Service) linkFromGrant(grant SessionGrant) (string, bool, error) {
	if link := strings.TrimSpace(grant.URL); link != "" {
		return link, false, nil
	}
	token := strings.TrimSpace(grant.Token)
	if token == "" {
		return "", false, errors.New("provider returned neither link nor token")
	}
	domain := firstNonEmpty(grant.Domain, s.config.Session.Domain)
	if domain == "" {
		return "", false, errors.New("session domain is required to build the link")
	}
	base, err := url.Parse(strings.TrimSpace(s.config.Session.SSOBaseURL))
	if err != nil || base.Host == "" {
		return "", false, fmt.Errorf("session sso base url %q is invalid", s.config.Session.SSOBaseURL)
	}
	query := base.Query()
	query.Set("domain", domain)
	query.Set("jwt", token)
	base.RawQuery = query.Encode()
	return base.String(), true, nil
}
