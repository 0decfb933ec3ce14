package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fee-payments",
	Short: "BHS school fee payments",
	Long:  `Fee payment initiation, Flutterwave webhook confirmation and ledger reconciliation for the school website.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*internal.Config, error) {
	// A local .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	// Containers configure everything through plain environment variables
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		cfg := internal.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	// Load configuration from file (development)
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that the
// config file leaves out.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("http_server.port", 8080)
	v.SetDefault("http_server.base_url", "http://localhost:8080")
	v.SetDefault("http_server.allowed_origins", "")
	v.SetDefault("http_server.read_header_timeout", "5s")
	v.SetDefault("http_server.read_timeout", "15s")
	v.SetDefault("http_server.idle_timeout", "60s")
	v.SetDefault("http_server.write_timeout", "30s")

	v.SetDefault("database.source", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	v.SetDefault("security.admin_token_secret", "")
	v.SetDefault("security.admin_token_issuer", "")

	v.SetDefault("observability.logging.level", "")
	v.SetDefault("observability.logging.format", "")

	v.SetDefault("payment.base_url", internal.DefaultGatewayBaseURL)
	v.SetDefault("payment.secret_key", "")
	v.SetDefault("payment.webhook_hash", "")
	v.SetDefault("payment.payment_options", internal.DefaultPaymentOptions)
	v.SetDefault("payment.redirect_path", internal.DefaultRedirectPath)
	v.SetDefault("payment.gateway_timeout", "0s")
	v.SetDefault("payment.enforce_amount_match", false)

	v.SetDefault("school.name", "Bright Horizon School")
	v.SetDefault("school.logo_url", "")
	v.SetDefault("school.ref_prefix", internal.DefaultRefPrefix)

	v.SetDefault("reconciler.enabled", false)
	v.SetDefault("reconciler.schedule", "@every 10m")
	v.SetDefault("reconciler.stale_after", "15m")
	v.SetDefault("reconciler.batch_size", 50)
	v.SetDefault("reconciler.workers", 4)
}

func initLogger(cfg *internal.Config) {
	logger.Init(cfg.Env, cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-dir", ".", "directory containing config.yml")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(notifyCmd)
}
