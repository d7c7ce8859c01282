package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Currency CurrencyConfig `koanf:"currency"`
	Gateways GatewaysConfig `koanf:"gateways"`
	Pricing  PricingConfig  `koanf:"pricing"`
	Payout   PayoutConfig   `koanf:"payout"`
	Auth     AuthConfig     `koanf:"auth"`
	Logger   LoggerConfig   `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// CurrencyConfig drives the conversion service. StaticRates (currency -> rate
// against Base) is the fallback when RatesURL is empty, and the fixture source
// for development.
type CurrencyConfig struct {
	Base            string            `koanf:"base" validate:"required"`
	RatesURL        string            `koanf:"rates_url"`
	RatesTTL        time.Duration     `koanf:"rates_ttl" validate:"required"`
	CountryDefaults map[string]string `koanf:"country_defaults"`
	StaticRates     map[string]string `koanf:"static_rates"`
}

// GatewayRule routes a (country, currency, product) combination to a provider.
// An empty slice matches everything; selection fails closed when no enabled
// rule matches.
type GatewayRule struct {
	Provider   string   `koanf:"provider" validate:"required"`
	Countries  []string `koanf:"countries"`
	Currencies []string `koanf:"currencies"`
	Products   []string `koanf:"products"`
	Enabled    bool     `koanf:"enabled"`
}

type ProviderConfig struct {
	BaseURL       string `koanf:"base_url"`
	SecretKey     string `koanf:"secret_key"`
	WebhookSecret string `koanf:"webhook_secret"`
	ClientID      string `koanf:"client_id"`
	WebhookID     string `koanf:"webhook_id"`
}

type GatewaysConfig struct {
	Stripe          ProviderConfig `koanf:"stripe"`
	PayPal          ProviderConfig `koanf:"paypal"`
	Flutterwave     ProviderConfig `koanf:"flutterwave"`
	Paystack        ProviderConfig `koanf:"paystack"`
	Rules           []GatewayRule  `koanf:"rules"`
	RedirectBaseURL string         `koanf:"redirect_base_url" validate:"required"`
	ConnTimeout     time.Duration  `koanf:"conn_timeout" validate:"required"`
	RetryBaseDelay  time.Duration  `koanf:"retry_base_delay"`
	MaxRetries      int            `koanf:"max_retries"`
}

// PricingConfig holds platform unit prices in the base currency. A gallery
// unlock is only sellable where UnlockAllPriceCents is configured positive.
type PricingConfig struct {
	MediaUnitPriceCents  int64 `koanf:"media_unit_price_cents" validate:"required"`
	CreditUnitPriceCents int64 `koanf:"credit_unit_price_cents" validate:"required"`
	UnlockAllPriceCents  int64 `koanf:"unlock_all_price_cents"`
	PlatformFeePercent   int64 `koanf:"platform_fee_percent"`
}

// PayoutConfig: MinimumsCents maps currency code to the threshold a wallet
// balance must reach before a threshold-mode payout is created.
type PayoutConfig struct {
	MinimumsCents  map[string]int64 `koanf:"minimums_cents" validate:"required"`
	LeaseTTL       time.Duration    `koanf:"lease_ttl" validate:"required"`
	WorkerInterval time.Duration    `koanf:"worker_interval" validate:"required"`
	BatchSize      int              `koanf:"batch_size" validate:"required"`
	RetryWindow    time.Duration    `koanf:"retry_window"`
}

// AuthConfig maps operator bearer tokens to the payout permissions they carry.
type AuthConfig struct {
	OperatorTokens map[string]string `koanf:"operator_tokens"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("PAYMENTS_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "PAYMENTS_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// NewLogger builds the application logger at the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
