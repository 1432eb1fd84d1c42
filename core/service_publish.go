package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const publishStatusSuccess = "success"

// Publish submits content through the provider for a connected identity.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (result PublishResult, err error) {
	startedAt := time.Now().UTC()
	identity := strings.TrimSpace(req.Identity)
	fields := map[string]any{"identity": identity}
	defer func() {
		fields["post_id"] = result.PostID
		fields["platforms"] = strings.Join(result.Platforms, ",")
		s.observeOperation(ctx, startedAt, "publish", err, fields)
	}()

	if identity == "" {
		err = MissingIdentityError()
		return PublishResult{}, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		err = MissingContentError()
		return PublishResult{}, err
	}

	record, found, lookupErr := s.lookupRecord(ctx, identity)
	if lookupErr != nil {
		err = PersistenceError(lookupErr)
		return PublishResult{}, err
	}
	if !found || !record.Connected || !record.HasProfileKey() {
		err = NotConnectedError(identity)
		return PublishResult{}, err
	}

	platforms := normalizePlatforms(req.Platforms)
	if len(platforms) == 0 {
		platforms = s.config.defaultPlatforms()
	}

	gatewayCtx, cancel := s.gatewayContext(ctx)
	published, err := s.gateway.Publish(gatewayCtx, PublishPayload{
		ProfileKey:   record.ProviderProfileKey,
		Content:      content,
		Platforms:    platforms,
		MediaURLs:    append([]string(nil), req.MediaURLs...),
		ScheduleDate: req.ScheduleDate,
	})
	cancel()
	if err != nil {
		err = PublishRejectedError(err, nil)
		return PublishResult{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(published.Status), publishStatusSuccess) {
		detail := strings.Join(published.Errors, "; ")
		if detail == "" {
			detail = "no detail"
		}
		err = PublishRejectedError(
			fmt.Errorf("provider status %q: %s", published.Status, detail),
			published.Details,
		)
		return PublishResult{}, err
	}

	return PublishResult{
		Identity:  identity,
		PostID:    published.PostID,
		Status:    publishStatusSuccess,
		Platforms: platforms,
		Posts:     append([]PlatformPost(nil), published.Posts...),
	}, nil
}
