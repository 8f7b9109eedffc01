package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const prefix = "vmail"

type Config struct {
	Environment         string        `envconfig:"ENV" default:"development" desc:"development, test or production"`
	Port                string        `envconfig:"PORT" default:"3005" desc:"HTTP listen port"`
	EncryptionKeyBase64 string        `envconfig:"ENCRYPTION_KEY_BASE64" desc:"Base64 encoded 32 byte token key"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info" desc:"debug, info, warn or error"`
	LogFormat           string        `envconfig:"LOG_FORMAT" default:"json" desc:"json or console"`
	DatabaseURL         string        `envconfig:"DATABASE_URL" desc:"Postgres URL for the delivery journal, optional"`
	IMAPTimeout         time.Duration `envconfig:"IMAP_TIMEOUT" default:"15s" desc:"IMAP connect and greeting timeout"`
	SMTPTimeout         time.Duration `envconfig:"SMTP_TIMEOUT" default:"15s" desc:"SMTP connect and greeting timeout"`
	IMAPMaxSessions     int           `envconfig:"IMAP_MAX_SESSIONS" default:"3" desc:"Concurrent IMAP sessions allowed per account"`
	TLSInsecureSkip     bool          `envconfig:"TLS_INSECURE_SKIP_VERIFY" default:"false" desc:"Accept any mail server certificate"`
	ListLimit           int           `envconfig:"LIST_LIMIT" default:"500" desc:"Most recent messages returned by a listing"`
	MaxUploadBytes      int64         `envconfig:"MAX_UPLOAD_BYTES" default:"10485760" desc:"Request body ceiling for uploads"`
	DefaultIMAPHost     string        `envconfig:"IMAP_HOST" desc:"IMAP host used when login omits it"`
	DefaultIMAPPort     int           `envconfig:"IMAP_PORT" default:"993" desc:"IMAP port used when login omits it"`
	DefaultIMAPSecure   bool          `envconfig:"IMAP_SECURE" default:"true" desc:"Implicit TLS when login omits it"`
	Widgets             Widgets       `envconfig:"WIDGET"`
}

// Widgets holds the upstream URLs of the dashboard widgets.
type Widgets struct {
	RatesURL   string        `envconfig:"RATES_URL" default:"https://finans.truncgil.com/today.json"`
	WeatherURL string        `envconfig:"WEATHER_URL" default:"https://wttr.in"`
	NewsURL    string        `envconfig:"NEWS_URL" default:"https://api.rss2json.com/v1/api.json?rss_url=https://www.aa.com.tr/tr/rss/default?cat=guncel"`
	City       string        `envconfig:"CITY" default:"Istanbul"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

func NewConfig() (*Config, error) {
	env := os.Getenv("VMAIL_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{}
	if err := envconfig.Process(prefix, config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("VMAIL_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.ListLimit <= 0 {
		return fmt.Errorf("VMAIL_LIST_LIMIT must be positive, got %d", c.ListLimit)
	}

	if c.IMAPMaxSessions <= 0 {
		return fmt.Errorf("VMAIL_IMAP_MAX_SESSIONS must be positive, got %d", c.IMAPMaxSessions)
	}

	if c.IMAPTimeout <= 0 || c.SMTPTimeout <= 0 {
		return fmt.Errorf("VMAIL_IMAP_TIMEOUT and VMAIL_SMTP_TIMEOUT must be positive")
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("VMAIL_LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}

	return nil
}

// JournalEnabled reports whether delivery outcomes are written to Postgres.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}
