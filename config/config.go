package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/configparser"
)

// Flags
var (
	modeFlag = flag.String("mode", "", "application mode")
)

// Errors
var (
	ErrModeNotProvided = errors.New("mode flag not provided")
	ErrInvalidPolicy   = errors.New("invalid dispatch policy")
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Mode types.ServiceMode

		Database DatabaseConfig
		RabbitMQ RabbitMQConfig
		Redis    RedisConfig
		Dispatch DispatchConfig
		Services ServicesConfig
	}

	DatabaseConfig struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"dispatch_user"`
		Password string `env:"DATABASE_PASSWORD" default:"dispatch_pass"`
		Database string `env:"DATABASE_DATABASE" default:"dispatch_db"`

		MaxConns        int32         `env:"DATABASE_MAXCONNS" default:"20"`
		MinConns        int32         `env:"DATABASE_MINCONNS" default:"2"`
		MaxConnLifetime time.Duration `env:"DATABASE_MAXCONNLIFETIME" default:"30m"`
		MaxConnIdleTime time.Duration `env:"DATABASE_MAXCONNIDLETIME" default:"5m"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`

		// MaxDeliveryAttempts bounds redelivery of a failing message before it
		// is routed to the queue's dead-letter companion.
		MaxDeliveryAttempts int `env:"RABBITMQ_MAXDELIVERYATTEMPTS" default:"5"`
	}

	RedisConfig struct {
		Host     string `env:"REDIS_HOST" default:"localhost"`
		Port     string `env:"REDIS_PORT" default:"6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" default:"0"`

		// AssignmentTTL is a safety net against orphaned visibility records.
		// Zero keeps records until explicitly cleared.
		AssignmentTTL time.Duration `env:"REDIS_ASSIGNMENTTTL" default:"0s"`
	}

	DispatchConfig struct {
		// Policy selects the driver matching strategy: direct_pick or broadcast.
		Policy string `env:"DISPATCH_POLICY" default:"direct_pick"`

		// PublishRetries bounds retries of cache/queue writes performed after
		// a ledger commit.
		PublishRetries int           `env:"DISPATCH_PUBLISHRETRIES" default:"5"`
		PublishBackoff time.Duration `env:"DISPATCH_PUBLISHBACKOFF" default:"1s"`
	}

	ServicesConfig struct {
		RideService   string `env:"SERVICES_RIDE_SERVICE" default:"3000"`
		DriverService string `env:"SERVICES_DRIVER_SERVICE" default:"3001"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func (c RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c RedisConfig) GetPassword() string { return c.Password }
func (c RedisConfig) GetDB() int          { return c.DB }

// PolicyName returns the validated selection policy.
func (c DispatchConfig) PolicyName() (types.SelectionPolicyName, error) {
	p := types.SelectionPolicyName(c.Policy)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, c.Policy)
	}
	return p, nil
}

func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading environment variables and parsing into the config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if _, err := cfg.Dispatch.PolicyName(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseFlags(cfg *Config) error {
	if modeFlag == nil || *modeFlag == "" {
		return ErrModeNotProvided
	}

	cfg.Mode = types.ServiceMode(*modeFlag)

	return nil
}
