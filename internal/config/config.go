package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/billforge/billforge/internal/validator"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig
	Cron       CronConfig   `validate:"required"`
	Worker     WorkerConfig `validate:"required"`

	// BillingSchedules declares the schedule plugin instances available to
	// subscriptions, keyed by the schedule id stored on the aggregate.
	BillingSchedules []BillingScheduleConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type CronConfig struct {
	// SweepInterval is how often the scheduler scans for ended orders and
	// startable subscriptions.
	SweepInterval time.Duration `validate:"required"`
	// BatchSize caps how many entities a single sweep picks up per scan.
	BatchSize int `validate:"required,gt=0"`
}

type WorkerConfig struct {
	// MaxRetryInterval bounds the exponential backoff applied when a close
	// job hits a retryable gateway error.
	MaxRetryInterval time.Duration `validate:"required"`
	// MaxElapsedTime is the total time a close job keeps retrying soft
	// declines before giving up.
	MaxElapsedTime time.Duration `validate:"required"`
}

type BillingScheduleConfig struct {
	ID           string                `validate:"required"`
	Interval     types.BillingInterval `validate:"required"`
	IntervalUnit int                   `validate:"required,gt=0"`
	BillingType  types.BillingType     `validate:"required"`
	AllowTrials  bool
	TrialDays    int
	Combine      bool
	// Fixed aligns periods to calendar boundaries and prorates partial first
	// periods; a rolling schedule anchors periods to the subscription start.
	Fixed bool
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billforge")

	v.SetEnvPrefix("BILLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// config file is optional; env vars and defaults still apply
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("cron.sweepinterval", "1m")
	v.SetDefault("cron.batchsize", 100)
	v.SetDefault("worker.maxretryinterval", "2m")
	v.SetDefault("worker.maxelapsedtime", "15m")
}

func (c Configuration) Validate() error {
	if err := validator.ValidateConfig(c); err != nil {
		return err
	}
	for _, schedule := range c.BillingSchedules {
		if err := schedule.Interval.Validate(); err != nil {
			return err
		}
		if err := schedule.BillingType.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetDefaultConfig returns a configuration suitable for tests and local
// tooling without reading any config file.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		Cron: CronConfig{
			SweepInterval: time.Minute,
			BatchSize:     100,
		},
		Worker: WorkerConfig{
			MaxRetryInterval: 2 * time.Minute,
			MaxElapsedTime:   15 * time.Minute,
		},
	}
}
