package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "verify", "token", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`

	// AllowInsecureWebhooks lets webhook requests through when a signing
	// secret is missing. Rejected by Validate in production.
	AllowInsecureWebhooks bool `env:"ALLOW_INSECURE_WEBHOOKS" envDefault:"false"`

	MetaVerifyToken   string `env:"META_VERIFY_TOKEN"`
	MetaAppSecret     string `env:"META_APP_SECRET"`
	MetaAccessToken   string `env:"META_WHATSAPP_TOKEN"`
	MetaPhoneNumberID string `env:"META_WHATSAPP_PHONE_NUMBER_ID"`
	MetaAPIBaseURL    string `env:"META_API_BASE_URL" envDefault:"https://graph.facebook.com"`
	MetaAPIVersion    string `env:"META_API_VERSION" envDefault:"v17.0"`
	MetaDryRun        bool   `env:"META_DRY_RUN" envDefault:"false"`

	MonnifyAPIKey       string `env:"MONNIFY_API_KEY"`
	MonnifySecretKey    string `env:"MONNIFY_SECRET_KEY"`
	MonnifyContractCode string `env:"MONNIFY_CONTRACT_CODE"`
	MonnifyBaseURL      string `env:"MONNIFY_BASE_URL" envDefault:"https://api.monnify.com"`
	MonnifyRedirectURL  string `env:"MONNIFY_REDIRECT_URL"`
	CurrencyCode        string `env:"CURRENCY_CODE" envDefault:"NGN"`
	PayerEmailDomain    string `env:"PAYER_EMAIL_DOMAIN" envDefault:"chatapp.com"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioSMSFrom    string `env:"TWILIO_SMS_FROM"`

	RateLimitMax              int `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindowSeconds    int `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"900"`
	SessionLockTTLSeconds     int `env:"SESSION_LOCK_TTL_SECONDS" envDefault:"60"`
	PaymentEventRetentionDays int `env:"PAYMENT_EVENT_RETENTION_DAYS" envDefault:"30"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c *Config) SessionLockTTL() time.Duration {
	return time.Duration(c.SessionLockTTLSeconds) * time.Second
}

func (c *Config) PaymentEventRetention() time.Duration {
	return time.Duration(c.PaymentEventRetentionDays) * 24 * time.Hour
}

func (c *Config) MonnifyConfigured() bool {
	return c.MonnifyAPIKey != "" && c.MonnifySecretKey != "" && c.MonnifyContractCode != ""
}

func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioSMSFrom != ""
}

func (c *Config) Validate(isProduction bool) error {
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be positive")
	}
	if c.SessionLockTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_LOCK_TTL_SECONDS must be positive")
	}

	if isProduction {
		if c.AllowInsecureWebhooks {
			return fmt.Errorf("ALLOW_INSECURE_WEBHOOKS must not be set in production")
		}
		if c.MetaAppSecret == "" {
			return fmt.Errorf("META_APP_SECRET is required in production")
		}
		if c.MonnifySecretKey == "" {
			return fmt.Errorf("MONNIFY_SECRET_KEY is required in production")
		}
		if !c.MonnifyConfigured() {
			return fmt.Errorf("MONNIFY_API_KEY and MONNIFY_CONTRACT_CODE are required in production: placeholder payment links are for local testing only")
		}
		if c.MetaAccessToken == "" || c.MetaPhoneNumberID == "" {
			return fmt.Errorf("META_WHATSAPP_TOKEN and META_WHATSAPP_PHONE_NUMBER_ID are required in production: verification codes cannot be delivered without them")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in production: session locks must be shared across instances")
		}
		if err := validateSecret("META_VERIFY_TOKEN", c.MetaVerifyToken); err != nil {
			return err
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.MetaDryRun {
			log.Warn().Msg("META_DRY_RUN is enabled in production: outbound messages will only be logged and confirmations fall back to SMS")
		}
	}

	if c.AllowInsecureWebhooks {
		log.Warn().Msg("ALLOW_INSECURE_WEBHOOKS is enabled: unsigned webhook requests will be accepted when a secret is missing")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 16 {
		return fmt.Errorf("%s must be at least 16 characters in production (generate with: openssl rand -hex 16)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
