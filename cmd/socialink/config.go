package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-socialink/core"
	"github.com/joho/godotenv"
)

type appConfig struct {
	Addr            string        `env:"SOCIALINK_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SOCIALINK_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigin   string        `env:"SOCIALINK_ALLOWED_ORIGIN" envDefault:"*"`
	LogLevel        string        `env:"SOCIALINK_LOG_LEVEL" envDefault:"info"`

	DatabaseDriver string        `env:"SOCIALINK_DB_DRIVER" envDefault:"sqlite3"`
	DatabaseDSN    string        `env:"SOCIALINK_DB_DSN" envDefault:"file:socialink.db?cache=shared&_foreign_keys=on"`
	DatabaseDebug  bool          `env:"SOCIALINK_DB_DEBUG" envDefault:"false"`
	CacheTTL       time.Duration `env:"SOCIALINK_CACHE_TTL" envDefault:"1m"`

	AyrshareAPIKey     string `env:"AYRSHARE_API_KEY,required,notEmpty"`
	AyrshareBaseURL    string `env:"AYRSHARE_BASE_URL"`
	AyrshareDomain     string `env:"AYRSHARE_DOMAIN"`
	AyrsharePrivateKey string `env:"AYRSHARE_PRIVATE_KEY"`

	CallbackURL      string        `env:"SOCIALINK_CALLBACK_URL,required,notEmpty"`
	SigningSecret    string        `env:"SOCIALINK_CALLBACK_SECRET"`
	SuccessURL       string        `env:"SOCIALINK_SUCCESS_URL"`
	FailureURL       string        `env:"SOCIALINK_FAILURE_URL"`
	SSOBaseURL       string        `env:"SOCIALINK_SSO_BASE_URL"`
	GatewayTimeout   time.Duration `env:"SOCIALINK_GATEWAY_TIMEOUT" envDefault:"15s"`
	DefaultPlatforms []string      `env:"SOCIALINK_DEFAULT_PLATFORMS" envSeparator:","`

	ReconcileInterval  time.Duration `env:"SOCIALINK_RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileBatchSize int           `env:"SOCIALINK_RECONCILE_BATCH_SIZE" envDefault:"50"`
	ReconcileAttempts  int           `env:"SOCIALINK_RECONCILE_MAX_ATTEMPTS" envDefault:"3"`
}

// loadConfig reads an optional .env file and then the process environment.
func loadConfig() (appConfig, error) {
	_ = godotenv.Load()

	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	switch cfg.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		return appConfig{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
	return cfg, nil
}

func (c appConfig) serviceConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Callback.URL = c.CallbackURL
	cfg.Callback.SigningSecret = c.SigningSecret
	if c.SuccessURL != "" {
		cfg.Redirect.SuccessURL = c.SuccessURL
	}
	if c.FailureURL != "" {
		cfg.Redirect.FailureURL = c.FailureURL
	}
	if c.SSOBaseURL != "" {
		cfg.Session.SSOBaseURL = c.SSOBaseURL
	}
	cfg.Session.Domain = c.AyrshareDomain
	cfg.Gateway.RequestTimeout = c.GatewayTimeout
	if len(c.DefaultPlatforms) > 0 {
		cfg.Publish.DefaultPlatforms = c.DefaultPlatforms
	}
	cfg.Reconcile.BatchSize = c.ReconcileBatchSize
	cfg.Reconcile.MaxAttempts = c.ReconcileAttempts
	return cfg
}

// persistenceConfig satisfies the go-persistence-bun client config.
type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.dsn }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "socialink" }
