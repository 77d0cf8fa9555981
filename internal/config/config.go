package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ctf-scoreboard/internal/competition"
	"github.com/ctf-scoreboard/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Audit       AuditConfig       `yaml:"audit"`
	Session     SessionConfig     `yaml:"session"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Competition CompetitionConfig `yaml:"competition"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	Database         string        `yaml:"database"`
	SSLMode          string        `yaml:"ssl_mode"`
	MaxConnections   int           `yaml:"max_connections"`
	MinConnections   int           `yaml:"min_connections"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	Topic          string        `yaml:"topic"`
	SolvesTopic    string        `yaml:"solves_topic"`
	GroupID        string        `yaml:"group_id"`
	Enabled        bool          `yaml:"enabled"`
	PublishSolves  bool          `yaml:"publish_solves"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
	StartTimeout   time.Duration `yaml:"start_timeout"`
}

// AuditConfig holds ledger audit worker configuration
type AuditConfig struct {
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// SessionConfig holds login session configuration
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	Secure     bool          `yaml:"secure"`
}

// RateLimitConfig bounds how many flags a user may submit per window
type RateLimitConfig struct {
	Submissions int           `yaml:"submissions"`
	Window      time.Duration `yaml:"window"`
	Enabled     bool          `yaml:"enabled"`
}

// CompetitionConfig describes the competition itself
type CompetitionConfig struct {
	Name    string           `yaml:"name"`
	LogoURL string           `yaml:"logo_url"`
	EndTime string           `yaml:"end_time"`
	Flags   map[string]int64 `yaml:"flags"`
}

// End parses the configured end time (RFC3339).
func (c *CompetitionConfig) End() (time.Time, error) {
	if c.EndTime == "" {
		return time.Time{}, fmt.Errorf("%w: end_time is required", domain.ErrInvalidConfig)
	}
	end, err := time.Parse(time.RFC3339, c.EndTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parsing end_time: %v", domain.ErrInvalidConfig, err)
	}
	return end, nil
}

// Clock builds the competition clock from the configured end time.
func (c *CompetitionConfig) Clock() (competition.Clock, error) {
	end, err := c.End()
	if err != nil {
		return competition.Clock{}, err
	}
	return competition.NewClock(end), nil
}

// Catalog builds the immutable flag catalog.
func (c *CompetitionConfig) Catalog() (*competition.Catalog, error) {
	return competition.NewCatalog(c.Flags)
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings that have no sensible default.
func (c *Config) Validate() error {
	if _, err := c.Competition.End(); err != nil {
		return err
	}
	if _, err := c.Competition.Catalog(); err != nil {
		return err
	}
	if c.RateLimit.Enabled && c.RateLimit.Submissions <= 0 {
		return fmt.Errorf("%w: rate_limit.submissions must be positive", domain.ErrInvalidConfig)
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		return fmt.Errorf("%w: rate_limit.window must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}
	if c.Postgres.StatementTimeout == 0 {
		c.Postgres.StatementTimeout = 5 * time.Second
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "flag-submissions"
	}
	if c.Kafka.SolvesTopic == "" {
		c.Kafka.SolvesTopic = "flag-solves"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "scoreboard-consumer"
	}
	if c.Kafka.HandlerTimeout == 0 {
		c.Kafka.HandlerTimeout = 10 * time.Second
	}
	if c.Kafka.StartTimeout == 0 {
		c.Kafka.StartTimeout = 30 * time.Second
	}

	// Audit defaults
	if c.Audit.Interval == 0 {
		c.Audit.Interval = 10 * time.Minute
	}

	// Session defaults
	if c.Session.CookieName == "" {
		c.Session.CookieName = "session_id"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}

	// Rate limit defaults
	if c.RateLimit.Submissions == 0 {
		c.RateLimit.Submissions = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}

	// Competition defaults
	if c.Competition.Name == "" {
		c.Competition.Name = "CTF"
	}
}

// DefaultConfig returns a configuration with all defaults. The competition
// section is left empty and must still be provided.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Audit.Enabled = true
	cfg.RateLimit.Enabled = true
	return cfg
}
