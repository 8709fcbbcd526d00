package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const minSessionTTL = time.Second

// Config holds the complete application configuration, loadable from
// environment variables (RIG_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (RIG_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (RIG_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Stripe       StripeConfig
	PayPal       PayPalConfig
	Firebase     FirebaseConfig
	Session      SessionConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StripeConfig enables card payments when SecretKey is set.
type StripeConfig struct {
	SecretKey string `usage:"Stripe secret key" flag:"stripe-secret-key"`
}

// PayPalConfig enables wallet payments when client credentials are set.
type PayPalConfig struct {
	BaseURL      string `default:"https://api-m.sandbox.paypal.com" usage:"PayPal REST API base URL"`
	ClientID     string `usage:"PayPal client id"`
	ClientSecret string `usage:"PayPal client secret"`
	ReturnURL    string `usage:"URL PayPal returns the customer to after approval"`
	CancelURL    string `usage:"URL PayPal returns the customer to after cancelling"`
	BrandName    string `default:"Rig" usage:"Brand name shown on the PayPal approval page"`
}

// Enabled reports whether wallet payments are configured.
func (c PayPalConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// FirebaseConfig enables account creation when ProjectID is set.
type FirebaseConfig struct {
	ProjectID       string `usage:"Firebase project id"`
	CredentialsFile string `usage:"Path to a service account JSON file"`
}

// SessionConfig controls checkout session lifetime.
type SessionConfig struct {
	TTL time.Duration `default:"30m" usage:"Idle time after which a checkout session expires"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RIG",
		Files:     []string{"config.yaml", "/etc/rig/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set RIG_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q: use %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}
	if c.Session.TTL != 0 && c.Session.TTL < minSessionTTL {
		return errors.Errorf("session TTL %s is below the minimum of %s", c.Session.TTL, minSessionTTL)
	}
	if c.PayPal.Enabled() && (c.PayPal.ReturnURL == "" || c.PayPal.CancelURL == "") {
		return errors.New("paypal return and cancel URLs are required")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's RIG_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
