package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Booking   BookingConfig   `yaml:"booking"`
	Worker    WorkerConfig    `yaml:"worker"`
	Auth      AuthConfig      `yaml:"auth"`
	Mail      MailConfig      `yaml:"mail"`
	Tickets   TicketsConfig   `yaml:"tickets"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address"`
	SwaggerDir  string   `yaml:"swagger_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
	PublishRetries     int      `yaml:"publish_retries"`
}

type BookingConfig struct {
	FlightsCacheTTL int `yaml:"flights_cache_ttl_seconds"`
	// LockBackend is "local" (single instance) or "redis".
	LockBackend    string `yaml:"lock_backend"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	LockWaitMillis int    `yaml:"lock_wait_millis"`
}

func (b BookingConfig) FlightsCacheDuration() time.Duration {
	return time.Duration(b.FlightsCacheTTL) * time.Second
}

func (b BookingConfig) LockTTL() time.Duration {
	return time.Duration(b.LockTTLSeconds) * time.Second
}

func (b BookingConfig) LockWait() time.Duration {
	return time.Duration(b.LockWaitMillis) * time.Millisecond
}

type WorkerConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type TicketsConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type RateLimitConfig struct {
	// Rate uses the "<limit>-<period>" form, e.g. "20-1m".
	Rate string `yaml:"rate"`
}

// LoadConfig reads the YAML file at path. An optional .env file is loaded
// first and ${VAR} references in the file are expanded from the environment.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Booking.FlightsCacheTTL == 0 {
		c.Booking.FlightsCacheTTL = 30
	}
	if c.Booking.LockBackend == "" {
		c.Booking.LockBackend = "local"
	}
	if c.Booking.LockTTLSeconds == 0 {
		c.Booking.LockTTLSeconds = 15
	}
	if c.Booking.LockWaitMillis == 0 {
		c.Booking.LockWaitMillis = 5000
	}
	if c.Kafka.PublishRetries == 0 {
		c.Kafka.PublishRetries = 2
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 3
	}
	if c.Tickets.Dir == "" {
		c.Tickets.Dir = "tickets"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.RateLimit.Rate == "" {
		c.RateLimit.Rate = "30-1m"
	}
}
