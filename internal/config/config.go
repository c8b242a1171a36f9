package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevSecretKey is the fallback signing key; Validate rejects it when
// cookies are marked secure.
const DevSecretKey = "dev_key_fallback"

// Config is the server and worker configuration.
type Config struct {
	// HTTP Server
	Port         string
	BaseURL      string
	SecureCookie bool
	TemplateDir  string
	StaticDir    string

	// Security
	SecretKey      string
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxy keys rate limits on X-Forwarded-For; enable only behind a
	// proxy that overwrites the header.
	TrustProxy bool

	// Database
	DatabaseURL string

	// Logging
	LogLevel string
	LogJSON  bool
	Location *time.Location
	Timezone string

	// Mail
	Mail MailConfig

	// AMQP (optional; empty URL keeps mail dispatch in-process)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Bootstrap user created on first start when set
	AdminUser     string
	AdminPassword string
	AdminEmail    string
}

// MailConfig selects and configures the outbound mail transport.
type MailConfig struct {
	Provider string
	Server   string
	Port     int
	Username string
	Password string
	UseTLS   bool
	UseSSL   bool
	Sender   string
	APIKey   string
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		BaseURL:      strings.TrimRight(getEnv("BASE_URL", ""), "/"),
		SecureCookie: getEnvBool("SECURE_COOKIE", false),
		TemplateDir:  getEnv("TEMPLATE_DIR", "web/templates"),
		StaticDir:    getEnv("STATIC_DIR", "web/static"),

		SecretKey:      getEnv("SECRET_KEY", DevSecretKey),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),

		DatabaseURL: normalizeDatabaseURL(getEnv("DATABASE_URL", getEnv("DB_PATH", "finance.db"))),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),
		Timezone: getEnv("TIMEZONE", "Local"),

		Mail: MailConfig{
			Provider: strings.ToLower(getEnv("MAIL_PROVIDER", "log")),
			Server:   getEnv("MAIL_SERVER", "localhost"),
			Port:     getEnvInt("MAIL_PORT", 587),
			Username: getEnv("MAIL_USERNAME", ""),
			Password: getEnv("MAIL_PASSWORD", ""),
			UseTLS:   getEnvBool("MAIL_USE_TLS", true),
			UseSSL:   getEnvBool("MAIL_USE_SSL", false),
			Sender:   getEnv("MAIL_SENDER", getEnv("MAIL_USERNAME", "noreply@localhost")),
			APIKey:   getEnv("MAIL_API_KEY", ""),
		},

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finance"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "password_reset_mail"),

		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
	}

	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		cfg.Location = loc
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SecretKey == "" {
		errors = append(errors, "SECRET_KEY cannot be empty")
	} else if c.SecureCookie && c.SecretKey == DevSecretKey {
		errors = append(errors, "SECRET_KEY must be set when SECURE_COOKIE is enabled")
	}

	if c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL cannot be empty")
	}

	if c.Location == nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s'", c.Timezone))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid base URL '%s': must be absolute", c.BaseURL))
	}

	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	errors = append(errors, c.Mail.validate()...)

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if (c.AdminUser == "") != (c.AdminPassword == "") {
		errors = append(errors, "ADMIN_USER and ADMIN_PASSWORD must be set together")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (m MailConfig) validate() []string {
	var errors []string
	switch m.Provider {
	case "log":
	case "smtp":
		if m.Server == "" {
			errors = append(errors, "MAIL_SERVER is required for the smtp provider")
		}
		if m.Port < 1 || m.Port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid mail port %d", m.Port))
		}
		if m.UseTLS && m.UseSSL {
			errors = append(errors, "MAIL_USE_TLS and MAIL_USE_SSL are mutually exclusive")
		}
	case "resend", "sendgrid":
		if m.APIKey == "" {
			errors = append(errors, fmt.Sprintf("MAIL_API_KEY is required for the %s provider", m.Provider))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid mail provider '%s': must be one of [log smtp resend sendgrid]", m.Provider))
	}
	if m.Provider != "log" && m.Sender == "" {
		errors = append(errors, "MAIL_SENDER cannot be empty")
	}
	return errors
}

// normalizeDatabaseURL strips the sqlite:/// prefix some deployments carry
// over from URL-style configuration.
func normalizeDatabaseURL(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite:///") {
		return strings.TrimPrefix(dsn, "sqlite:///")
	}
	return dsn
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
