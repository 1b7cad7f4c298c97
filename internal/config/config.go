package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション設定を表す
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Remote   RemoteConfig
	Auth     AuthConfig
	Booking  BookingConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowOrigins    []string
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns   int
	MaxIdleConns   int
	ConnectRetries int
	RetryInterval  time.Duration
	MigrationsPath string
}

// RedisConfig はRedis設定
// 無効の場合、予約作成時の分散ロックを使わない
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// RemoteConfig は連携サービスの設定
type RemoteConfig struct {
	AccommodationURL   string
	Timeout            time.Duration
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

// AuthConfig は認証トークンの設定
type AuthConfig struct {
	JWTSecret string
}

// BookingConfig は予約ルールの設定
type BookingConfig struct {
	// 確定済みの予約のみ支払い済みにできるようにする
	PaymentRequiresConfirmed bool
	DefaultPageSize          int
	MaxPageSize              int
}

// MetricsConfig は /metrics の設定（ユーザー未設定なら認証なし）
type MetricsConfig struct {
	User     string
	Password string
}

// LogConfig はログ設定
type LogConfig struct {
	Env   string
	Level string
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowOrigins:    getListEnv("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		Remote: RemoteConfig{
			AccommodationURL:   getEnv("ACCOMMODATION_SERVICE_URL", "http://accommodation-service:3002"),
			Timeout:            getDurationEnv("REMOTE_TIMEOUT", 5*time.Second),
			BreakerMaxFailures: getIntEnv("REMOTE_BREAKER_MAX_FAILURES", 2),
			BreakerOpenTimeout: getDurationEnv("REMOTE_BREAKER_OPEN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Booking: BookingConfig{
			PaymentRequiresConfirmed: getBoolEnv("BOOKING_PAYMENT_REQUIRES_CONFIRMED", false),
			DefaultPageSize:          getIntEnv("BOOKING_DEFAULT_PAGE_SIZE", 10),
			MaxPageSize:              getIntEnv("BOOKING_MAX_PAGE_SIZE", 100),
		},
		Metrics: MetricsConfig{
			User:     getEnv("METRICS_USER", ""),
			Password: getEnv("METRICS_PASSWORD", ""),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "development"),
			Level: getEnv("LOG_LEVEL", ""),
		},
	}
}

func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		Host:           getEnv("DB_HOST", "localhost"),
		Port:           getEnv("DB_PORT", "5432"),
		User:           getEnv("DB_USER", "postgres"),
		Password:       getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "reservations"),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
		ConnectRetries: getIntEnv("DB_CONNECT_RETRIES", 10),
		RetryInterval:  getDurationEnv("DB_CONNECT_RETRY_INTERVAL", 2*time.Second),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
	}

	// DATABASE_URL（PaaS形式）が指定されていれば個別設定より優先する
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			cfg.Host = u.Hostname()
			if port := u.Port(); port != "" {
				cfg.Port = port
			}
			if u.User != nil {
				cfg.User = u.User.Username()
				if pw, ok := u.User.Password(); ok {
					cfg.Password = pw
				}
			}
			if name := strings.TrimPrefix(u.Path, "/"); name != "" {
				cfg.DBName = name
			}
			cfg.SSLMode = "require"
			if mode := u.Query().Get("sslmode"); mode != "" {
				cfg.SSLMode = mode
			}
		}
	}
	return cfg
}

func loadRedisConfig() RedisConfig {
	cfg := RedisConfig{
		Enabled:  getBoolEnv("REDIS_ENABLED", true),
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getIntEnv("REDIS_DB", 0),
		LockTTL:  getDurationEnv("REDIS_LOCK_TTL", 10*time.Second),
	}

	if raw := os.Getenv("REDIS_URL"); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			cfg.Host = u.Hostname()
			if port := u.Port(); port != "" {
				cfg.Port = port
			}
			if u.User != nil {
				if pw, ok := u.User.Password(); ok {
					cfg.Password = pw
				}
			}
			if db, err := strconv.Atoi(strings.TrimPrefix(u.Path, "/")); err == nil {
				cfg.DB = db
			}
		}
	}
	return cfg
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv はカンマ区切りの値を返す（空要素は除く）
func getListEnv(key string, defaultValue []string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
