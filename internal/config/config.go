package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `yaml:"env" env:"APP_ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	AppPort  string `yaml:"app_port" env:"APP_PORT" env-default:"8080"`

	DBHost        string `yaml:"db_host" env:"DB_HOST" env-default:"localhost"`
	DBPort        string `yaml:"db_port" env:"DB_PORT" env-default:"5432"`
	DBUser        string `yaml:"db_user" env:"DB_USER" env-default:"postgres"`
	DBPassword    string `yaml:"db_password" env:"DB_PASSWORD" env-default:"postgres"`
	DBName        string `yaml:"db_name" env:"DB_NAME" env-default:"coupondb"`
	DBSSLMode     string `yaml:"db_sslmode" env:"DB_SSLMODE" env-default:"disable"`
	DBMaxConns    int    `yaml:"db_max_conns" env:"DB_MAX_CONNS" env-default:"20"`
	MigrationsDir string `yaml:"migrations_dir" env:"MIGRATIONS_DIR" env-default:"db/migrations"`

	RequestTimeout     time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"5s"`
	RedeemLockTimeout  time.Duration `yaml:"redeem_lock_timeout" env:"REDEEM_LOCK_TIMEOUT" env-default:"2s"`
	BreakerMaxFailures int           `yaml:"breaker_max_failures" env:"BREAKER_MAX_FAILURES" env-default:"5"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout" env:"BREAKER_OPEN_TIMEOUT" env-default:"10s"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	AuditActor         string        `yaml:"audit_actor" env:"AUDIT_ACTOR" env-default:"admin"`

	AuditMongoURI        string `yaml:"audit_mongo_uri" env:"AUDIT_MONGO_URI" env-default:""`
	AuditMongoDatabase   string `yaml:"audit_mongo_database" env:"AUDIT_MONGO_DATABASE" env-default:"coupons"`
	AuditMongoCollection string `yaml:"audit_mongo_collection" env:"AUDIT_MONGO_COLLECTION" env-default:"audit_logs"`

	KafkaBrokers           string        `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-default:"kafka:9092"`
	KafkaClientID          string        `yaml:"kafka_client_id" env:"KAFKA_CLIENT_ID" env-default:"coupon-ledger"`
	KafkaGroupID           string        `yaml:"kafka_group_id" env:"KAFKA_GROUP_ID" env-default:"coupon-ledger-consumers"`
	KafkaRetryGroupID      string        `yaml:"kafka_retry_group_id" env:"KAFKA_RETRY_GROUP_ID" env-default:"coupon-ledger-retry"`
	KafkaInstanceID        string        `yaml:"kafka_instance_id" env:"KAFKA_INSTANCE_ID" env-default:""`
	KafkaTopicPartitions   int           `yaml:"kafka_topic_partitions" env:"KAFKA_TOPIC_PARTITIONS" env-default:"3"`
	KafkaRetryPartitions   int           `yaml:"kafka_retry_partitions" env:"KAFKA_RETRY_PARTITIONS" env-default:"1"`
	KafkaReplicationFactor int           `yaml:"kafka_replication_factor" env:"KAFKA_REPLICATION_FACTOR" env-default:"1"`
	KafkaRetryMaxAttempts  int           `yaml:"kafka_retry_max_attempts" env:"KAFKA_RETRY_MAX_ATTEMPTS" env-default:"3"`
	KafkaRetryMinDelay     time.Duration `yaml:"kafka_retry_min_delay" env:"KAFKA_RETRY_MIN_DELAY" env-default:"100ms"`
	KafkaRetryMaxDelay     time.Duration `yaml:"kafka_retry_max_delay" env:"KAFKA_RETRY_MAX_DELAY" env-default:"1s"`
	EventDrivenEnabled     bool          `yaml:"event_driven_enabled" env:"EVENT_DRIVEN_ENABLED" env-default:"false"`
	KafkaAuditEnabled      bool          `yaml:"kafka_audit_enabled" env:"KAFKA_AUDIT_ENABLED" env-default:"true"`
}

// Load reads the configuration from CONFIG_PATH when set, then from the
// environment. Environment variables always win over the file.
func Load() (*Config, error) {
	cfg := &Config{}

	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		desc, _ := cleanenv.GetDescription(cfg, nil)
		return nil, fmt.Errorf("config: %w; %s", err, desc)
	}

	if cfg.KafkaInstanceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			cfg.KafkaInstanceID = "unknown"
		} else {
			cfg.KafkaInstanceID = hostname
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return fmt.Errorf("APP_PORT is required")
	}
	if c.RedeemLockTimeout <= 0 {
		return fmt.Errorf("REDEEM_LOCK_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func (c *Config) TopicPartitions() int {
	return positive(c.KafkaTopicPartitions, 3)
}

func (c *Config) RetryPartitions() int {
	return positive(c.KafkaRetryPartitions, 1)
}

func (c *Config) ReplicationFactor() int16 {
	return int16(positive(c.KafkaReplicationFactor, 1))
}

func (c *Config) RetryMaxAttempts() int {
	return positive(c.KafkaRetryMaxAttempts, 3)
}

func (c *Config) BreakerFailures() uint32 {
	return uint32(positive(c.BreakerMaxFailures, 5))
}

func positive(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
