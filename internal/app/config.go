package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL  string `default:"" usage:"Base URL for product images" flag:"image-base-url"`
	APIKeyPepper  string `usage:"HMAC pepper for API key hashing (SHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`
	SecureCookies bool   `default:"false" usage:"Mark the cart cookie Secure" flag:"secure-cookies"`
	Pricing       PricingConfig
	Donation      DonationConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Graceful      GracefulConfig
}

// PricingConfig holds the cost summary rates as decimal strings.
type PricingConfig struct {
	ShippingRate string `default:"5.00" usage:"Flat shipping charge per cart line"`
	TaxRate      string `default:"0.05" usage:"Tax rate applied to subtotal plus shipping"`
}

// DonationConfig controls round-up donations and the donation service.
type DonationConfig struct {
	BaseURL  string        `default:"" usage:"Donation service base URL; empty disables notifications" flag:"donation-url"`
	Retailer string        `default:"PartsUnlimited" usage:"Source retailer reported with donations"`
	Currency string        `default:"GBP" usage:"Currency reported with donations"`
	Min      string        `default:"0.10" usage:"Minimum donation amount"`
	Max      string        `default:"10000.00" usage:"Donations at or above this amount are not sent"`
	Timeout  time.Duration `default:"5s" usage:"Timeout of one donation notification"`
}

// RedisConfig enables the shared cart lock.
type RedisConfig struct {
	URL     string        `default:"" usage:"Redis URL for the shared cart lock (SHOP_REDIS_URL or REDIS_URL); empty uses an in-process lock"`
	LockTTL time.Duration `default:"10s" usage:"Expiry of an unreleased cart lock"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
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
	if _, err := c.Pricing.Rates(); err != nil {
		return err
	}
	if _, _, err := c.Donation.Bounds(); err != nil {
		return err
	}
	if c.Donation.Timeout <= 0 {
		return errors.New("donation timeout must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Rates parses the configured pricing rates.
func (p PricingConfig) Rates() (pricing.Rates, error) {
	shipping, err := decimal.NewFromString(p.ShippingRate)
	if err != nil {
		return pricing.Rates{}, errors.Wrap(err, "pricing shipping rate")
	}
	tax, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return pricing.Rates{}, errors.Wrap(err, "pricing tax rate")
	}
	if shipping.IsNegative() || tax.IsNegative() {
		return pricing.Rates{}, errors.New("pricing rates must not be negative")
	}
	return pricing.Rates{Shipping: shipping, Tax: tax}, nil
}

// Bounds parses the configured donation minimum and cap.
func (d DonationConfig) Bounds() (minAmount, maxAmount decimal.Decimal, err error) {
	if minAmount, err = decimal.NewFromString(d.Min); err != nil {
		return minAmount, maxAmount, errors.Wrap(err, "donation min")
	}
	if maxAmount, err = decimal.NewFromString(d.Max); err != nil {
		return minAmount, maxAmount, errors.Wrap(err, "donation max")
	}
	if !minAmount.LessThan(maxAmount) {
		return minAmount, maxAmount, errors.Errorf("donation min %s must be below max %s", minAmount, maxAmount)
	}
	return minAmount, maxAmount, nil
}
