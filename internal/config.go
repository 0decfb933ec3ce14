package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultGatewayBaseURL = "https://api.flutterwave.com"
	DefaultPaymentOptions = "mobilemoneyuganda,card"
	DefaultRedirectPath   = "/fees/payment-status"
	DefaultRefPrefix      = "BHS"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	School        SchoolConfig        `mapstructure:"school"`
	Reconciler    ReconcilerConfig    `mapstructure:"reconciler"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source" validate:"required"`
}

// SecurityConfig guards the admin reporting routes. They are not mounted when
// AdminTokenSecret is empty.
type SecurityConfig struct {
	AdminTokenSecret string `mapstructure:"admin_token_secret" validate:"omitempty,min=32"`
	AdminTokenIssuer string `mapstructure:"admin_token_issuer"`
}

type PaymentConfig struct {
	BaseURL            string        `mapstructure:"base_url" validate:"required,url"`
	SecretKey          string        `mapstructure:"secret_key" validate:"required"`
	WebhookHash        string        `mapstructure:"webhook_hash" validate:"required"`
	PaymentOptions     string        `mapstructure:"payment_options" validate:"required"`
	RedirectPath       string        `mapstructure:"redirect_path" validate:"required,startswith=/"`
	GatewayTimeout     time.Duration `mapstructure:"gateway_timeout" validate:"min=0"`
	EnforceAmountMatch bool          `mapstructure:"enforce_amount_match"`
}

type SchoolConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	LogoURL   string `mapstructure:"logo_url" validate:"omitempty,url"`
	RefPrefix string `mapstructure:"ref_prefix" validate:"required,alphanum,max=8"`
}

type ReconcilerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Schedule   string        `mapstructure:"schedule" validate:"required_if=Enabled true"`
	StaleAfter time.Duration `mapstructure:"stale_after" validate:"min=0"`
	BatchSize  int           `mapstructure:"batch_size" validate:"min=0"`
	Workers    int           `mapstructure:"workers" validate:"min=0"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration from plain environment variables
// for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			AdminTokenSecret: getEnv("ADMIN_TOKEN_SECRET", ""),
			AdminTokenIssuer: getEnv("ADMIN_TOKEN_ISSUER", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Payment: PaymentConfig{
			BaseURL:            getEnv("FLW_BASE_URL", DefaultGatewayBaseURL),
			SecretKey:          getEnv("FLW_SECRET_KEY", ""),
			WebhookHash:        getEnv("FLW_SECRET_HASH", ""),
			PaymentOptions:     getEnv("FLW_PAYMENT_OPTIONS", DefaultPaymentOptions),
			RedirectPath:       getEnv("FLW_REDIRECT_PATH", DefaultRedirectPath),
			GatewayTimeout:     getEnvAsDuration("FLW_TIMEOUT", 0),
			EnforceAmountMatch: getEnvAsBool("FLW_ENFORCE_AMOUNT_MATCH", false),
		},
		School: SchoolConfig{
			Name:      getEnv("SCHOOL_NAME", "Bright Horizon School"),
			LogoURL:   getEnv("SCHOOL_LOGO_URL", ""),
			RefPrefix: getEnv("SCHOOL_REF_PREFIX", DefaultRefPrefix),
		},
		Reconciler: ReconcilerConfig{
			Enabled:    getEnvAsBool("RECONCILER_ENABLED", false),
			Schedule:   getEnv("RECONCILER_SCHEDULE", "@every 10m"),
			StaleAfter: getEnvAsDuration("RECONCILER_STALE_AFTER", 15*time.Minute),
			BatchSize:  getEnvAsInt("RECONCILER_BATCH_SIZE", 50),
			Workers:    getEnvAsInt("RECONCILER_WORKERS", 4),
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	for _, origin := range c.Origins() {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid allowed origin %q", origin)
		}
	}
	if c.ReadTimeout > 0 && c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// Origins splits the comma separated allow-list, dropping blanks and trailing slashes.
func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) AdminEnabled() bool {
	return c.AdminTokenSecret != ""
}
