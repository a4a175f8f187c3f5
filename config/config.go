package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	LogLevel    slog.Level
	StoreDriver string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBMigrate  bool

	JWTSecret      string
	AccessTokenTTL time.Duration

	RabbitMQURL     string
	OrderExchange   string
	OrderQueue      string
	DeadLetterQueue string
	DelayExchange   string
	MaxPriority     int
	PaymentTimeout  time.Duration

	RedisAddr        string
	RedisPassword    string
	LoginMaxAttempts int
	LoginCooldown    time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MaxImageSize   int64

	CORSOrigins []string

	FirstSuperuserEmail    string
	FirstSuperuserUsername string
	FirstSuperuserPassword string
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getLogLevel("LOG_LEVEL", slog.LevelInfo),
		StoreDriver: getEnv("STORE_DRIVER", "mysql"),

		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "bookstore"),
		DBMigrate:  getBool("DB_MIGRATE", true),

		JWTSecret:      getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),
		AccessTokenTTL: time.Duration(getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,

		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		OrderExchange:   getEnv("ORDER_EXCHANGE", "orders_exchange"),
		OrderQueue:      getEnv("ORDER_QUEUE", "orders_queue"),
		DeadLetterQueue: getEnv("DEAD_LETTER_QUEUE", "dead_letter_queue"),
		DelayExchange:   getEnv("DELAY_EXCHANGE", "delay_exchange"),
		MaxPriority:     10,
		PaymentTimeout:  getDuration("PAYMENT_TIMEOUT", 15*time.Minute),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnvFromFile("REDIS_PASSWORD_FILE", "REDIS_PASSWORD", ""),
		LoginMaxAttempts: getInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginCooldown:    getDuration("LOGIN_COOLDOWN", 15*time.Minute),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnvFromFile("MINIO_SECRET_KEY_FILE", "MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "book-covers"),
		MinioUseSSL:    getBool("MINIO_USE_SSL", false),
		MaxImageSize:   int64(getInt("MAX_FILE_SIZE", 5*1024*1024)),

		CORSOrigins: getList("CORS_ORIGINS", []string{"*"}),

		FirstSuperuserEmail:    getEnv("FIRST_SUPERUSER_EMAIL", ""),
		FirstSuperuserUsername: getEnv("FIRST_SUPERUSER_USERNAME", "admin"),
		FirstSuperuserPassword: getEnvFromFile("FIRST_SUPERUSER_PASSWORD_FILE", "FIRST_SUPERUSER_PASSWORD", ""),
	}
}

// DSN builds the MySQL data source name. ClientFoundRows makes conditional
// updates report matched rather than changed rows.
func (c *Config) DSN() string {
	dsn := mysql.NewConfig()
	dsn.User = c.DBUser
	dsn.Passwd = c.DBPassword
	dsn.Net = "tcp"
	dsn.Addr = c.DBHost + ":" + c.DBPort
	dsn.DBName = c.DBName
	dsn.ParseTime = true
	dsn.ClientFoundRows = true
	dsn.MultiStatements = true
	return dsn.FormatDSN()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func getInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getLogLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return defaultValue
	}
	return level
}
