package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images" flag:"image-base-url"`
	Auth         AuthConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// AuthConfig controls identity resolution.
type AuthConfig struct {
	Secret          string        `usage:"HS256 secret for auth tokens (SHOP_AUTH_SECRET)" flag:"auth-secret"`
	CookieName      string        `default:"auth_token" usage:"Auth token cookie name"`
	SessionCookie   string        `default:"session_id" usage:"Anonymous session cookie name"`
	SessionLifetime time.Duration `default:"720h" usage:"Anonymous session cookie lifetime"`
	SecureCookies   bool          `default:"false" usage:"Mark cookies Secure" flag:"secure-cookies"`
}

// CheckoutConfig controls order pricing.
type CheckoutConfig struct {
	DeliveryFee     string `default:"200" usage:"Flat delivery fee per non-empty order" flag:"delivery-fee"`
	AdminOrderLimit int    `default:"50" usage:"Default admin order listing size"`
}

// RateLimitConfig controls the per-client token bucket limiter.
type RateLimitConfig struct {
	RPS    float64       `default:"20" usage:"Sustained requests per second per client"`
	Burst  int           `default:"40" usage:"Burst size per client"`
	Expiry time.Duration `default:"3m" usage:"Evict idle clients after"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow cookies on cross-origin requests (requires explicit origins)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// DeliveryFee returns the parsed checkout delivery fee.
func (c *Config) DeliveryFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.Checkout.DeliveryFee)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse delivery fee %q", c.Checkout.DeliveryFee)
	}
	if fee.IsNegative() {
		return decimal.Zero, errors.Errorf("delivery fee %s is negative", fee)
	}
	return fee, nil
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(skipFlags bool) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: skipFlags,
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/phoneplace/config.yaml"},
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
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.DeliveryFee(); err != nil {
		return err
	}
	if c.CORS.AllowCredentials {
		for _, o := range c.CORS.Origins {
			if o == "*" {
				return errors.New("cors: credentials cannot be combined with the \"*\" origin")
			}
		}
	}
	if c.Checkout.AdminOrderLimit < 1 {
		return errors.Errorf("admin order limit must be positive, got %d", c.Checkout.AdminOrderLimit)
	}
	return nil
}

// applyPlatformDefaults maps DATABASE_URL and PORT, as set by hosting
// platforms, onto the SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
