package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	Booking  BookingConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// BookingConfig holds the engine knobs: how long an in-cart ticket survives
// untouched, how long seat/sector locks are held, and where rendered
// documents land.
type BookingConfig struct {
	CartExpiry  time.Duration
	LockTTL     time.Duration
	DocumentDir string
	FontPath    string
	QRSecret    string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topic:   getEnv("KAFKA_TOPIC", "booking-events"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("MYSQL_DSN", "booking:booking@tcp(localhost:3306)/booking?parseTime=true"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Booking: BookingConfig{
			CartExpiry:  time.Duration(getEnvInt("CART_EXPIRY_MINUTES", 10)) * time.Minute,
			LockTTL:     time.Duration(getEnvInt("BOOKING_LOCK_TTL_SECONDS", 30)) * time.Second,
			DocumentDir: getEnv("DOCUMENT_DIR", "./documents"),
			FontPath:    getEnv("PDF_FONT_PATH", "./fonts/DejaVuSans.ttf"),
			QRSecret:    getEnv("QR_SECRET_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
