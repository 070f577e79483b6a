/**
 * @description
 * Configuration management for the settlement service. Viper reads an
 * optional .env file plus environment variables, applies defaults, and
 * coerces out-of-range values back into bounds with a logged warning.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration variables for the settlement service.
type Config struct {
	ServerPort          string `mapstructure:"SERVER_PORT"`
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
	RedisURL            string `mapstructure:"REDIS_URL"`
	JWKSURL             string `mapstructure:"JWKS_URL"`
	ChainRPCURL         string `mapstructure:"CHAIN_RPC_URL"`
	ChainID             uint64 `mapstructure:"CHAIN_ID"`
	TokenAddress        string `mapstructure:"TOKEN_ADDRESS"`
	TokenSymbol         string `mapstructure:"TOKEN_SYMBOL"`
	FeeCollectorAddress string `mapstructure:"FEE_COLLECTOR_ADDRESS"`
	WebhookSigningKey   string `mapstructure:"WEBHOOK_SIGNING_KEY"`
	ReminderMinHours    int    `mapstructure:"REMINDER_MIN_HOURS"`
	RequestExpiryDays   int    `mapstructure:"REQUEST_EXPIRY_DAYS"`
	NotifyQueueSize     int    `mapstructure:"NOTIFY_QUEUE_SIZE"`
	NotifyMaxAttempts   int    `mapstructure:"NOTIFY_MAX_ATTEMPTS"`
}

// LoadConfig reads configuration from the optional .env file at path and the
// environment.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CHAIN_ID", 300)
	viper.SetDefault("TOKEN_SYMBOL", "USDC")
	// The network's reserved fee-collection (bootloader) address.
	viper.SetDefault("FEE_COLLECTOR_ADDRESS", "0x0000000000000000000000000000000000008001")
	viper.SetDefault("REMINDER_MIN_HOURS", 12)
	viper.SetDefault("REQUEST_EXPIRY_DAYS", 30)
	viper.SetDefault("NOTIFY_QUEUE_SIZE", 256)
	viper.SetDefault("NOTIFY_MAX_ATTEMPTS", 3)

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("CHAIN_RPC_URL")
	_ = viper.BindEnv("CHAIN_ID")
	_ = viper.BindEnv("TOKEN_ADDRESS")
	_ = viper.BindEnv("TOKEN_SYMBOL")
	_ = viper.BindEnv("FEE_COLLECTOR_ADDRESS")
	_ = viper.BindEnv("WEBHOOK_SIGNING_KEY")
	_ = viper.BindEnv("REMINDER_MIN_HOURS")
	_ = viper.BindEnv("REQUEST_EXPIRY_DAYS")
	_ = viper.BindEnv("NOTIFY_QUEUE_SIZE")
	_ = viper.BindEnv("NOTIFY_MAX_ATTEMPTS")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if config.ReminderMinHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive reminder interval; using default\" hours=%d", config.ReminderMinHours)
		config.ReminderMinHours = 12
	}
	if config.RequestExpiryDays <= 0 {
		config.RequestExpiryDays = 30
	}
	if config.NotifyQueueSize <= 0 {
		config.NotifyQueueSize = 256
	}
	if config.NotifyMaxAttempts <= 0 {
		config.NotifyMaxAttempts = 3
	}
	config.WebhookSigningKey = strings.TrimSpace(config.WebhookSigningKey)
	config.TokenAddress = strings.TrimSpace(config.TokenAddress)

	return
}
