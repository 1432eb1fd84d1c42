package ayrshare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-socialink/core"
	"github.com/goliatone/go-socialink/ratelimit"
	"github.com/goliatone/go-socialink/transport"
)

const ProviderID = "ayrshare"

const (
	DefaultBaseURL = "https://api.ayrshare.com/api"

	HeaderProfileKey = "Profile-Key"

	pathProfile     = "/profiles/profile"
	pathProfiles    = "/profiles"
	pathGenerateJWT = "/profiles/generateJWT"
	pathUser        = "/user"
	pathPost        = "/post"
)

type Config struct {
	APIKey  string
	BaseURL string
	// Domain and PrivateKey are forwarded to generateJWT when set.
	Domain     string
	PrivateKey string
	Timeout    time.Duration
	Transport  core.TransportAdapter
	// Limiter short-circuits calls for a profile while the provider is
	// throttling it.
	Limiter ratelimit.Limiter
}

type Gateway struct {
	transport core.TransportAdapter
	apiKey    string
	baseURL   string
	domain    string
	private   string
	timeout   time.Duration
	limiter   ratelimit.Limiter
}

func New(cfg Config) (*Gateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("ayrshare: api key is required")
	}
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return &Gateway{
		transport: adapter,
		apiKey:    apiKey,
		baseURL:   baseURL,
		domain:    strings.TrimSpace(cfg.Domain),
		private:   strings.TrimSpace(cfg.PrivateKey),
		timeout:   cfg.Timeout,
		limiter:   cfg.Limiter,
	}, nil
}

type profileResponse struct {
	Status     string `json:"status"`
	Title      string `json:"title"`
	RefID      string `json:"refId"`
	ProfileKey string `json:"profileKey"`
	Message    string `json:"message"`
}

func (g *Gateway) CreateProfile(ctx context.Context, req core.CreateProfileRequest) (core.ProviderProfile, error) {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return core.ProviderProfile{}, fmt.Errorf("ayrshare: profile reference is required")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = reference
	}
	treq, err := transport.JSONRequest(http.MethodPost, pathProfile, map[string]string{
		"title": title,
		"refId": reference,
	})
	if err != nil {
		return core.ProviderProfile{}, err
	}
	treq.Idempotency = strings.TrimSpace(req.IdempotencyKey)

	res, err := g.do(ctx, "create_profile", treq, "")
	if err != nil {
		return core.ProviderProfile{}, err
	}
	if statusErr := transport.StatusError("create_profile", res); statusErr != nil {
		if profileExists(res) {
			return core.ProviderProfile{}, fmt.Errorf("%w: %v", core.ErrProviderProfileExists, statusErr)
		}
		return core.ProviderProfile{}, statusErr
	}

	var body profileResponse
	if err := transport.DecodeJSON(res, &body); err != nil {
		return core.ProviderProfile{}, err
	}
	return core.ProviderProfile{
		ProfileKey: strings.TrimSpace(body.ProfileKey),
		Reference:  firstNonEmpty(body.RefID, reference),
		Title:      firstNonEmpty(body.Title, title),
	}, nil
}

func (g *Gateway) FindProfile(ctx context.Context, req core.FindProfileRequest) (core.ProviderProfile, bool, error) {
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return core.ProviderProfile{}, false, fmt.Errorf("ayrshare: profile reference is required")
	}
	treq, err := transport.JSONRequest(http.MethodGet, pathProfiles, nil)
	if err != nil {
		return core.ProviderProfile{}, false, err
	}
	treq.Query = map[string]string{"refId": reference}

	res, err := g.do(ctx, "find_profile", treq, "")
	if err != nil {
		return core.ProviderProfile{}, false, err
	}
	if res.StatusCode == http.StatusNotFound {
		return core.ProviderProfile{}, false, nil
	}
	if statusErr := transport.StatusError("find_profile", res); statusErr != nil {
		return core.ProviderProfile{}, false, statusErr
	}

	var body struct {
		Profiles []profileResponse `json:"profiles"`
	}
	if err := transport.DecodeJSON(res, &body); err != nil {
		return core.ProviderProfile{}, false, err
	}
	for _, profile := range body.Profiles {
		key := strings.TrimSpace(profile.ProfileKey)
		if key == "" {
			continue
		}
		if !matchesReference(profile, reference) {
			continue
		}
		return core.ProviderProfile{
			ProfileKey: key,
			Reference:  firstNonEmpty(profile.RefID, reference),
			Title:      strings.TrimSpace(profile.Title),
		}, true, nil
	}
	return core.ProviderProfile{}, false, nil
}

func (g *Gateway) IssueSession(ctx context.Context, req core.IssueSessionRequest) (core.SessionGrant, error) {
	profileKey := strings.TrimSpace(req.ProfileKey)
	if profileKey == "" {
		return core.SessionGrant{}, core.ErrProfileKeyRequired
	}
	payload := map[string]any{
		"profileKey": profileKey,
	}
	if redirect := strings.TrimSpace(req.RedirectURL); redirect != "" {
		payload["redirect"] = redirect
		payload["url"] = redirect
	}
	if g.domain != "" {
		payload["domain"] = g.domain
	}
	if g.private != "" {
		payload["privateKey"] = g.private
	}
	treq, err := transport.JSONRequest(http.MethodPost, pathGenerateJWT, payload)
	if err != nil {
		return core.SessionGrant{}, err
	}

	res, err := g.do(ctx, "issue_session", treq, profileKey)
	if err != nil {
		return core.SessionGrant{}, err
	}
	if statusErr := transport.StatusError("issue_session", res); statusErr != nil {
		return core.SessionGrant{}, statusErr
	}

	var body struct {
		Status    string `json:"status"`
		Token     string `json:"token"`
		URL       string `json:"url"`
		ExpiresIn any    `json:"expiresIn"`
	}
	if err := transport.DecodeJSON(res, &body); err != nil {
		return core.SessionGrant{}, err
	}
	grant := core.SessionGrant{
		URL:    strings.TrimSpace(body.URL),
		Token:  strings.TrimSpace(body.Token),
		Domain: g.domain,
	}
	if ttl := parseExpiresIn(body.ExpiresIn); ttl > 0 {
		expiresAt := time.Now().UTC().Add(ttl)
		grant.ExpiresAt = &expiresAt
	}
	if grant.URL == "" && grant.Token == "" {
		return core.SessionGrant{}, errors.New("ayrshare: generateJWT returned neither url nor token")
	}
	return grant, nil
}

func (g *Gateway) GetActiveAccounts(ctx context.Context, profileKey string) ([]string, error) {
	profileKey = strings.TrimSpace(profileKey)
	if profileKey == "" {
		return nil, core.ErrProfileKeyRequired
	}
	treq, err := transport.JSONRequest(http.MethodGet, pathUser, nil)
	if err != nil {
		return nil, err
	}
	res, err := g.do(ctx, "active_accounts", treq, profileKey)
	if err != nil {
		return nil, err
	}
	if statusErr := transport.StatusError("active_accounts", res); statusErr != nil {
		return nil, statusErr
	}
	var body struct {
		ActiveSocialAccounts []string `json:"activeSocialAccounts"`
	}
	if err := transport.DecodeJSON(res, &body); err != nil {
		return nil, err
	}
	accounts := make([]string, 0, len(body.ActiveSocialAccounts))
	for _, account := range body.ActiveSocialAccounts {
		if trimmed := strings.TrimSpace(account); trimmed != "" {
			accounts = append(accounts, trimmed)
		}
	}
	return accounts, nil
}

type postResponse struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	PostIDs []struct {
		Platform string `json:"platform"`
		ID       string `json:"id"`
		PostURL  string `json:"postUrl"`
		Status   string `json:"status"`
	} `json:"postIds"`
	Errors []struct {
		Platform string `json:"platform"`
		Message  string `json:"message"`
		Code     int    `json:"code"`
	} `json:"errors"`
	Message string `json:"message"`
}

// Publish submits a post. Provider-side rejections that carry a JSON body
// come back as a result with a non-success status so callers can inspect the
// per-platform errors.
func (g *Gateway) Publish(ctx context.Context, payload core.PublishPayload) (core.ProviderPublishResult, error) {
	profileKey := strings.TrimSpace(payload.ProfileKey)
	if profileKey == "" {
		return core.ProviderPublishResult{}, core.ErrProfileKeyRequired
	}
	body := map[string]any{
		"post":      payload.Content,
		"platforms": payload.Platforms,
	}
	if len(payload.MediaURLs) > 0 {
		body["mediaUrls"] = payload.MediaURLs
	}
	if payload.ScheduleDate != nil && !payload.ScheduleDate.IsZero() {
		body["scheduleDate"] = payload.ScheduleDate.UTC().Format(time.RFC3339)
	}
	treq, err := transport.JSONRequest(http.MethodPost, pathPost, body)
	if err != nil {
		return core.ProviderPublishResult{}, err
	}

	res, err := g.do(ctx, "publish", treq, profileKey)
	if err != nil {
		return core.ProviderPublishResult{}, err
	}

	var decoded postResponse
	decodeErr := transport.DecodeJSON(res, &decoded)
	if statusErr := transport.StatusError("publish", res); statusErr != nil {
		if res.StatusCode == http.StatusTooManyRequests || decodeErr != nil || strings.TrimSpace(decoded.Status) == "" {
			return core.ProviderPublishResult{}, statusErr
		}
	} else if decodeErr != nil {
		return core.ProviderPublishResult{}, decodeErr
	}

	result := core.ProviderPublishResult{
		Status:  strings.TrimSpace(decoded.Status),
		PostID:  strings.TrimSpace(decoded.ID),
		Details: map[string]any{"status_code": res.StatusCode},
	}
	for _, post := range decoded.PostIDs {
		result.Posts = append(result.Posts, core.PlatformPost{
			Platform: post.Platform,
			ID:       post.ID,
			URL:      post.PostURL,
			Status:   post.Status,
		})
	}
	for _, item := range decoded.Errors {
		message := strings.TrimSpace(item.Message)
		if item.Platform != "" {
			message = item.Platform + ": " + message
		}
		result.Errors = append(result.Errors, message)
	}
	if len(result.Errors) == 0 && strings.TrimSpace(decoded.Message) != "" && !strings.EqualFold(result.Status, "success") {
		result.Errors = append(result.Errors, strings.TrimSpace(decoded.Message))
	}
	return result, nil
}

func (g *Gateway) do(ctx context.Context, operation string, req core.TransportRequest, profileKey string) (core.TransportResponse, error) {
	if g == nil || g.transport == nil {
		return core.TransportResponse{}, fmt.Errorf("ayrshare: gateway is not configured")
	}
	req.URL = g.baseURL + req.URL
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Authorization"] = "Bearer " + g.apiKey
	if profileKey != "" {
		req.Headers[HeaderProfileKey] = profileKey
	}
	if req.Timeout <= 0 {
		req.Timeout = g.timeout
	}
	req.Metadata = map[string]any{"provider": ProviderID, "operation": operation}

	key := ratelimit.Key{Operation: operation, ProfileKey: profileKey}
	if g.limiter != nil {
		if err := g.limiter.BeforeCall(ctx, key); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return core.TransportResponse{}, throttled.ToServiceError()
			}
			return core.TransportResponse{}, err
		}
	}
	res, err := g.transport.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if g.limiter != nil {
		// Limiter state is advisory; a failed write must not fail the call.
		_ = g.limiter.AfterCall(ctx, key, ratelimit.ResponseMeta{StatusCode: res.StatusCode, Headers: res.Headers})
	}
	return res, nil
}

// matchesReference accepts a listed profile only when its refId, or its title
// when no refId was stored, equals reference exactly.
func matchesReference(profile profileResponse, reference string) bool {
	if ref := strings.TrimSpace(profile.RefID); ref != "" {
		return ref == reference
	}
	return strings.TrimSpace(profile.Title) == reference
}

func profileExists(res core.TransportResponse) bool {
	if res.StatusCode == http.StatusConflict {
		return true
	}
	if res.StatusCode < 400 || res.StatusCode >= 500 {
		return false
	}
	var body profileResponse
	if err := transport.DecodeJSON(res, &body); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(body.Message), "already exist")
}

func parseExpiresIn(value any) time.Duration {
	switch typed := value.(type) {
	case float64:
		return time.Duration(typed) * time.Minute
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0
		}
		if parsed, err := time.ParseDuration(trimmed); err == nil {
			return parsed
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ core.ProviderGateway = (*Gateway)(nil)
