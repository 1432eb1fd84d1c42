package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultServiceName      = "socialink"
	defaultSSOBaseURL       = "https://profile.ayrshare.com"
	defaultRedirectURL      = "/social/linked"
	defaultGatewayTimeout   = 15 * time.Second
	defaultReconcileBatch   = 50
	defaultReconcileRetries = 3
)

type CallbackConfig struct {
	URL           string `koanf:"url" mapstructure:"url"`
	SigningSecret string `koanf:"signing_secret" mapstructure:"signing_secret"`
}

type RedirectConfig struct {
	SuccessURL string `koanf:"success_url" mapstructure:"success_url"`
	FailureURL string `koanf:"failure_url" mapstructure:"failure_url"`
}

// SessionConfig drives deterministic link construction when the provider
// answers a session request with a bare token.
type SessionConfig struct {
	SSOBaseURL string `koanf:"sso_base_url" mapstructure:"sso_base_url"`
	Domain     string `koanf:"domain" mapstructure:"domain"`
}

type GatewayConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
}

type PublishConfig struct {
	DefaultPlatforms []string `koanf:"default_platforms" mapstructure:"default_platforms"`
}

type ReconcileConfig struct {
	BatchSize   int `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Callback    CallbackConfig  `koanf:"callback" mapstructure:"callback"`
	Redirect    RedirectConfig  `koanf:"redirect" mapstructure:"redirect"`
	Session     SessionConfig   `koanf:"session" mapstructure:"session"`
	Gateway     GatewayConfig   `koanf:"gateway" mapstructure:"gateway"`
	Publish     PublishConfig   `koanf:"publish" mapstructure:"publish"`
	Reconcile   ReconcileConfig `koanf:"reconcile" mapstructure:"reconcile"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		Redirect: RedirectConfig{
			SuccessURL: defaultRedirectURL,
			FailureURL: defaultRedirectURL,
		},
		Session: SessionConfig{
			SSOBaseURL: defaultSSOBaseURL,
		},
		Gateway: GatewayConfig{
			RequestTimeout: defaultGatewayTimeout,
		},
		Publish: PublishConfig{
			DefaultPlatforms: []string{"facebook", "instagram"},
		},
		Reconcile: ReconcileConfig{
			BatchSize:   defaultReconcileBatch,
			MaxAttempts: defaultReconcileRetries,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Redirect.SuccessURL) == "" {
		return fmt.Errorf("core: redirect.success_url is required")
	}
	if strings.TrimSpace(c.Redirect.FailureURL) == "" {
		return fmt.Errorf("core: redirect.failure_url is required")
	}
	for name, raw := range map[string]string{
		"callback.url":         c.Callback.URL,
		"redirect.success_url": c.Redirect.SuccessURL,
		"redirect.failure_url": c.Redirect.FailureURL,
		"session.sso_base_url": c.Session.SSOBaseURL,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := url.Parse(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("core: %s is invalid: %w", name, err)
		}
	}
	if c.Gateway.RequestTimeout < 0 {
		return fmt.Errorf("core: gateway.request_timeout must not be negative")
	}
	if c.Reconcile.BatchSize < 0 || c.Reconcile.MaxAttempts < 0 {
		return fmt.Errorf("core: reconcile bounds must not be negative")
	}
	return nil
}

func (c Config) defaultPlatforms() []string {
	platforms := normalizePlatforms(c.Publish.DefaultPlatforms)
	if len(platforms) == 0 {
		return []string{"facebook", "instagram"}
	}
	return platforms
}

func normalizePlatforms(platforms []string) []string {
	if len(platforms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(platforms))
	out := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" {
			continue
		}
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, platform)
	}
	return out
}
