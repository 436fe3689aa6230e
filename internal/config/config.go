/**
 * @description
 * Configuration loading for the ledger service. Values come from an
 * optional app.env file and the process environment, with environment
 * variables taking precedence.
 *
 * @dependencies
 * - github.com/spf13/viper: Layered configuration management.
 */
package config

import (
	"errors"

	"github.com/spf13/viper"
)

// Config holds every tunable the service reads at startup.
type Config struct {
	// ServerPort is the HTTP listen port.
	ServerPort string `mapstructure:"SERVER_PORT"`

	// DatabaseURL is the Postgres connection string. When empty the service
	// falls back to the in-memory store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// RabbitMQURL is the broker address. When empty no events are published.
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	// TransferFeeBps is the transfer fee rate in basis points (100 = 1%).
	TransferFeeBps int32 `mapstructure:"TRANSFER_FEE_BPS"`

	// Default daily limits, in minor units, applied to newly created users.
	DefaultDailyWithdrawalLimit int64 `mapstructure:"DEFAULT_DAILY_WITHDRAWAL_LIMIT"`
	DefaultDailyTransferLimit   int64 `mapstructure:"DEFAULT_DAILY_TRANSFER_LIMIT"`

	// TimeZone is the IANA zone used for daily limit date stamps.
	TimeZone string `mapstructure:"TIME_ZONE"`

	// ReconcileCronSpec schedules the unlinked-leg sweep.
	ReconcileCronSpec string `mapstructure:"RECONCILE_CRON_SPEC"`
}

// LoadConfig reads configuration from the given directory and the
// environment. A missing config file is not an error; everything can come
// from the environment.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("TRANSFER_FEE_BPS", 100)
	viper.SetDefault("DEFAULT_DAILY_WITHDRAWAL_LIMIT", 1_000_000)
	viper.SetDefault("DEFAULT_DAILY_TRANSFER_LIMIT", 3_000_000)
	viper.SetDefault("TIME_ZONE", "Asia/Seoul")
	viper.SetDefault("RECONCILE_CRON_SPEC", "0 * * * *")

	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
