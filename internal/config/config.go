package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
	MinIO    MinIOConfig
	Limits   LimitsConfig
}

var (
	configInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the Postgres connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type MinIOConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

type LimitsConfig struct {
	// Socket events allowed per connection per second, with burst.
	EventsPerSecond float64
	EventBurst      int

	// REST requests per user per window.
	HTTPRequests   int
	HTTPWindow     time.Duration
	HTTPIPRequests int
}

func LoadConfig() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("RELAY_HOST", "")
		viper.SetDefault("RELAY_PORT", "8080")
		viper.SetDefault("RELAY_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("RELAY_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("RELAY_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("RELAY_JWT_SECRET", "secret")
		viper.SetDefault("RELAY_JWT_EXPIRE", "24h")
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_DB", "relay")
		viper.SetDefault("POSTGRES_SSLMODE", "disable")
		viper.SetDefault("REDIS_HOST", "localhost")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("REDIS_MAX_RETRIES", 3)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("KAFKA_ENABLED", false)
		viper.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})
		viper.SetDefault("KAFKA_TOPIC", "relay.messages")
		viper.SetDefault("MINIO_ENABLED", false)
		viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
		viper.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
		viper.SetDefault("MINIO_SECRET_KEY", "minioadmin")
		viper.SetDefault("MINIO_BUCKET", "relay-attachments")
		viper.SetDefault("LIMIT_EVENTS_PER_SECOND", 20.0)
		viper.SetDefault("LIMIT_EVENT_BURST", 40)
		viper.SetDefault("LIMIT_HTTP_REQUESTS", 120)
		viper.SetDefault("LIMIT_HTTP_WINDOW", time.Minute)
		viper.SetDefault("LIMIT_HTTP_IP_REQUESTS", 60)
		viper.AutomaticEnv()

		configInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("RELAY_HOST"),
				Port:         viper.GetString("RELAY_PORT"),
				ReadTimeout:  viper.GetDuration("RELAY_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("RELAY_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("RELAY_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
				SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			},
			Redis: RedisConfig{
				Host:         viper.GetString("REDIS_HOST"),
				Port:         viper.GetString("REDIS_PORT"),
				Password:     viper.GetString("REDIS_PASSWORD"),
				DB:           viper.GetInt("REDIS_DB"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("RELAY_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("RELAY_JWT_EXPIRE"),
			},
			Kafka: KafkaConfig{
				Enabled: viper.GetBool("KAFKA_ENABLED"),
				Brokers: viper.GetStringSlice("KAFKA_BROKERS"),
				Topic:   viper.GetString("KAFKA_TOPIC"),
			},
			MinIO: MinIOConfig{
				Enabled:   viper.GetBool("MINIO_ENABLED"),
				Endpoint:  viper.GetString("MINIO_ENDPOINT"),
				AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey: viper.GetString("MINIO_SECRET_KEY"),
				Bucket:    viper.GetString("MINIO_BUCKET"),
			},
			Limits: LimitsConfig{
				EventsPerSecond: viper.GetFloat64("LIMIT_EVENTS_PER_SECOND"),
				EventBurst:      viper.GetInt("LIMIT_EVENT_BURST"),
				HTTPRequests:    viper.GetInt("LIMIT_HTTP_REQUESTS"),
				HTTPWindow:      viper.GetDuration("LIMIT_HTTP_WINDOW"),
				HTTPIPRequests:  viper.GetInt("LIMIT_HTTP_IP_REQUESTS"),
			},
		}
	})

	return configInstance, nil
}
